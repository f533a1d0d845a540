package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/mosaic/internal/runtime"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitFor(t *testing.T, e *runtime.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

func TestAsync_StaleResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	firstStarted := make(chan struct{})
	secondDone := make(chan struct{})
	var stale atomic.Int32

	hooks := domain.LifecycleHooks{
		OnStaleDiscarded: func(context.Context, *domain.HandlerEvent) { stale.Add(1) },
		OnHandlerEnd: func(_ context.Context, ev *domain.HandlerEvent) {
			if ev.Outcome == domain.OutcomeUpdated {
				close(secondDone)
			}
		},
	}
	e := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	defer e.Close()

	_, err := e.Register(domain.HandlerSpec{
		ID: "cluster", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Async: true,
		Fn: func(_ context.Context, args domain.Args) (domain.Result, error) {
			n, _ := args.Input(0).AsInt()
			if n == 1 {
				close(firstStarted)
				// Generation 1 ignores cancellation and finishes late.
				<-release
			}
			return domain.Update(domain.Text(fmt.Sprintf("gen-%d", n))), nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	report, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"cluster"}, report.Deferred)
	<-firstStarted

	st, _ := e.Snapshot().Get(ca)
	assert.Equal(t, domain.StatusPending, st.Status)

	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(2))))
	require.NoError(t, err)
	<-secondDone
	close(release)
	waitFor(t, e)

	v, _ := e.Get(ca)
	assert.Equal(t, "gen-2", v.String())
	assert.Equal(t, int32(1), stale.Load())
	st, _ = e.Snapshot().Get(ca)
	assert.Equal(t, domain.StatusOK, st.Status)
	assert.Equal(t, uint64(1), st.Version, "the stale result never reached the store")
}

func TestAsync_FreshResultPropagates(t *testing.T) {
	rec := newRecorder()
	e := runtime.NewEngine()
	defer e.Close()

	_, err := e.Register(domain.HandlerSpec{ID: "A", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Async: true, Fn: plusOne(rec, "A")})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{ID: "B", Inputs: []domain.CellID{ca}, Outputs: []domain.CellID{cb}, Fn: plusOne(rec, "B")})
	require.NoError(t, err)

	report, err := e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	assert.Empty(t, report.Executed, "the pass does not wait for async work")

	waitFor(t, e)
	assert.Equal(t, 3.0, number(t, e, cb))
	assert.Equal(t, 1, rec.count("B"))
}

func TestAsync_PropagationSurvivesRelaunch(t *testing.T) {
	bStarted := make(chan struct{})
	releaseB := make(chan struct{})
	e := runtime.NewEngine()
	defer e.Close()

	_, err := e.Register(domain.HandlerSpec{
		ID: "A", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Async: true,
		Fn: func(_ context.Context, args domain.Args) (domain.Result, error) {
			n, _ := args.Input(0).AsInt()
			if n == 2 {
				return domain.Suppress(), nil
			}
			return domain.Update(domain.Text(fmt.Sprintf("a%d", n))), nil
		},
	})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{
		ID: "B", Inputs: []domain.CellID{ca}, Outputs: []domain.CellID{cb},
		Fn: func(_ context.Context, args domain.Args) (domain.Result, error) {
			close(bStarted)
			<-releaseB
			return domain.Update(domain.Text("b(" + args.Input(0).String() + ")")), nil
		},
	})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{
		ID: "C", Inputs: []domain.CellID{cb}, Outputs: []domain.CellID{cc},
		Fn: func(_ context.Context, args domain.Args) (domain.Result, error) {
			return domain.Update(domain.Text("c(" + args.Input(0).String() + ")")), nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	<-bStarted

	// Relaunching A cancels its first invocation while B is still running
	// downstream of the committed a1.
	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(2))))
	require.NoError(t, err)
	close(releaseB)
	waitFor(t, e)

	b, _ := e.Get(cb)
	assert.Equal(t, "b(a1)", b.String())
	c, _ := e.Get(cc)
	assert.Equal(t, "c(b(a1))", c.String())
}

func TestAsync_ErrorAndTimeout(t *testing.T) {
	var (
		mu   sync.Mutex
		errs []error
	)
	hooks := domain.LifecycleHooks{OnHandlerEnd: func(_ context.Context, ev *domain.HandlerEvent) {
		if ev.Outcome == domain.OutcomeFailed {
			mu.Lock()
			errs = append(errs, ev.Err)
			mu.Unlock()
		}
	}}
	e := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	defer e.Close()

	_, err := e.Register(domain.HandlerSpec{
		ID: "slow", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Async: true, Timeout: 20 * time.Millisecond,
		Fn: func(ctx context.Context, _ domain.Args) (domain.Result, error) {
			<-ctx.Done()
			return domain.Result{}, ctx.Err()
		},
	})
	require.NoError(t, err)

	_, err = e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	waitFor(t, e)

	st, _ := e.Snapshot().Get(ca)
	assert.Equal(t, domain.StatusError, st.Status)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], context.DeadlineExceeded))
}

func TestAsync_CloseStopsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	e := runtime.NewEngine()
	_, err := e.Register(domain.HandlerSpec{
		ID: "forever", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Async: true,
		Fn: func(ctx context.Context, _ domain.Args) (domain.Result, error) {
			close(started)
			<-ctx.Done()
			return domain.Result{}, ctx.Err()
		},
	})
	require.NoError(t, err)

	_, err = e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Wait(ctx), context.DeadlineExceeded, "work is still in flight")

	require.NoError(t, e.Close())
	waitFor(t, e)

	st, _ := e.Snapshot().Get(ca)
	assert.NotEqual(t, domain.StatusPending, st.Status)

	_, err = e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(2))))
	assert.ErrorIs(t, err, domain.ErrEngineClosed)
}

func TestParallel_IndependentPartitions(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	meet := func(context.Context, domain.Args) (domain.Result, error) {
		barrier.Done()
		done := make(chan struct{})
		go func() {
			barrier.Wait()
			close(done)
		}()
		select {
		case <-done:
			return domain.Update(domain.Bool(true)), nil
		case <-time.After(2 * time.Second):
			return domain.Update(domain.Bool(false)), nil
		}
	}

	e := runtime.NewEngine(runtime.WithWorkers(4))
	defer e.Close()
	left, right := domain.Cell("left", "value"), domain.Cell("right", "value")
	_, err := e.Register(domain.HandlerSpec{ID: "L", Inputs: []domain.CellID{left}, Outputs: []domain.CellID{ca}, Fn: meet})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{ID: "R", Inputs: []domain.CellID{right}, Outputs: []domain.CellID{cb}, Fn: meet})
	require.NoError(t, err)

	report, err := e.Dispatch(context.Background(), domain.NewEvent(domain.Set(left, domain.Int(1)), domain.Set(right, domain.Int(1))))
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.HandlerID{"L", "R"}, report.Executed)

	for _, c := range []domain.CellID{ca, cb} {
		v, _ := e.Get(c)
		ok, _ := v.AsBool()
		assert.True(t, ok, "%s ran alone", c)
	}
}

func TestConcurrentDispatch(t *testing.T) {
	e, _ := chain(t)
	other := domain.Cell("other", "value")
	out := domain.Cell("other", "out")
	rec := newRecorder()
	_, err := e.Register(domain.HandlerSpec{ID: "O", Inputs: []domain.CellID{other}, Outputs: []domain.CellID{out}, Fn: plusOne(rec, "O")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(i))))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = e.Dispatch(context.Background(), domain.NewEvent(domain.Set(other, domain.Int(i))))
		}(i)
	}
	wg.Wait()

	// Whatever order the events landed in, the chain agrees with its input.
	assert.Equal(t, number(t, e, in)+3, number(t, e, cc))
	assert.Equal(t, number(t, e, other)+1, number(t, e, out))
}
