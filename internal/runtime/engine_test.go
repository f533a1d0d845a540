package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/mosaic/internal/runtime"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	in = domain.Cell("in", "value")
	ca = domain.Cell("a", "out")
	cb = domain.Cell("b", "out")
	cc = domain.Cell("c", "out")
)

// recorder counts invocations and remembers their order.
type recorder struct {
	mu    sync.Mutex
	order []domain.HandlerID
	calls map[domain.HandlerID]int
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[domain.HandlerID]int)}
}

func (r *recorder) hit(id domain.HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
	r.calls[id]++
}

func (r *recorder) count(id domain.HandlerID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

// plusOne adds one to its first input and suppresses negative inputs.
func plusOne(r *recorder, id domain.HandlerID) domain.HandlerFunc {
	return func(_ context.Context, args domain.Args) (domain.Result, error) {
		r.hit(id)
		n, ok := args.Input(0).AsNumber()
		if !ok {
			n = 0
		}
		if n < 0 {
			return domain.Suppress(), nil
		}
		return domain.Update(domain.Number(n + 1)), nil
	}
}

func chain(t *testing.T, opts ...runtime.EngineOption) (*runtime.Engine, *recorder) {
	t.Helper()
	rec := newRecorder()
	e := runtime.NewEngine(opts...)
	require.NoError(t, e.Declare(in, domain.Unset()))
	for _, s := range []domain.HandlerSpec{
		{ID: "A", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Fn: plusOne(rec, "A")},
		{ID: "B", Inputs: []domain.CellID{ca}, Outputs: []domain.CellID{cb}, Fn: plusOne(rec, "B")},
		{ID: "C", Inputs: []domain.CellID{cb}, Outputs: []domain.CellID{cc}, Fn: plusOne(rec, "C")},
	} {
		_, err := e.Register(s)
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, rec
}

func number(t *testing.T, e *runtime.Engine, c domain.CellID) float64 {
	t.Helper()
	v, ok := e.Get(c)
	require.True(t, ok, "cell %s missing", c)
	n, ok := v.AsNumber()
	require.True(t, ok, "cell %s is %s, not a number", c, v.Kind())
	return n
}

func TestEngine_ChainRunsOnceInOrder(t *testing.T) {
	e, rec := chain(t)

	report, err := e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)

	assert.Equal(t, []domain.HandlerID{"A", "B", "C"}, report.Executed)
	assert.Equal(t, []domain.HandlerID{"A", "B", "C"}, rec.order)
	assert.Equal(t, []domain.CellID{in, ca, cb, cc}, report.Changed)
	assert.Equal(t, 4.0, number(t, e, cc))
	assert.NotEmpty(t, report.PassID)
}

func TestEngine_SuppressionStopsPropagation(t *testing.T) {
	e, rec := chain(t)
	ctx := context.Background()

	_, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(5))))
	require.NoError(t, err)
	before := e.Snapshot()

	report, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(-1))))
	require.NoError(t, err)

	assert.Equal(t, []domain.HandlerID{"A"}, report.Executed)
	assert.Equal(t, []domain.HandlerID{"A"}, report.Suppressed)
	assert.Equal(t, 1, rec.count("B"), "no dependent runs after a suppression")
	assert.Equal(t, 1, rec.count("C"))

	after := e.Snapshot()
	for _, c := range []domain.CellID{ca, cb, cc} {
		b, _ := before.Get(c)
		a, _ := after.Get(c)
		assert.Equal(t, b.Version, a.Version, "version of %s moved", c)
		assert.True(t, b.Value.Equal(a.Value))
	}
}

func TestEngine_PartialNoUpdate(t *testing.T) {
	rec := newRecorder()
	e := runtime.NewEngine()
	defer e.Close()
	left, right := domain.Cell("split", "left"), domain.Cell("split", "right")

	_, err := e.Register(domain.HandlerSpec{
		ID: "split", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{left, right},
		Fn: func(_ context.Context, args domain.Args) (domain.Result, error) {
			return domain.Update(args.Input(0), domain.NoUpdate()), nil
		},
	})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{ID: "L", Inputs: []domain.CellID{left}, Outputs: []domain.CellID{ca}, Fn: plusOne(rec, "L")})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{ID: "R", Inputs: []domain.CellID{right}, Outputs: []domain.CellID{cb}, Fn: plusOne(rec, "R")})
	require.NoError(t, err)

	report, err := e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(2))))
	require.NoError(t, err)

	assert.Equal(t, []domain.HandlerID{"split", "L"}, report.Executed)
	snap := e.Snapshot()
	l, _ := snap.Get(left)
	r, _ := snap.Get(right)
	assert.Equal(t, uint64(1), l.Version)
	assert.Equal(t, uint64(0), r.Version)
	assert.Equal(t, 0, rec.count("R"))
}

func TestEngine_HandlerErrorIsIsolated(t *testing.T) {
	var (
		mu      sync.Mutex
		failure error
	)
	hooks := domain.LifecycleHooks{
		OnHandlerEnd: func(_ context.Context, ev *domain.HandlerEvent) {
			if ev.Outcome == domain.OutcomeFailed {
				mu.Lock()
				failure = ev.Err
				mu.Unlock()
			}
		},
	}
	rec := newRecorder()
	e := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	defer e.Close()
	side := domain.Cell("side", "out")

	fail := false
	boom := errors.New("boom")
	for _, s := range []domain.HandlerSpec{
		{ID: "A", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Fn: func(ctx context.Context, args domain.Args) (domain.Result, error) {
			if fail {
				return domain.Result{}, boom
			}
			return plusOne(rec, "A")(ctx, args)
		}},
		{ID: "B", Inputs: []domain.CellID{ca}, Outputs: []domain.CellID{cb}, Fn: plusOne(rec, "B")},
		{ID: "side", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{side}, Fn: plusOne(rec, "side")},
	} {
		_, err := e.Register(s)
		require.NoError(t, err)
	}

	ctx := context.Background()
	_, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)

	fail = true
	report, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(10))))
	require.NoError(t, err, "handler failures do not fail the pass")

	assert.Equal(t, []domain.HandlerID{"A"}, report.Failed)
	assert.Equal(t, 1, rec.count("B"), "dependents of a failed handler do not run")
	assert.Equal(t, 11.0, number(t, e, side), "unrelated handlers still run")

	st, _ := e.Snapshot().Get(ca)
	assert.Equal(t, domain.StatusError, st.Status)
	assert.Equal(t, 2.0, mustNumber(t, st.Value), "last good value is kept")

	var hee *domain.HandlerExecutionError
	require.True(t, errors.As(failure, &hee))
	assert.Equal(t, domain.HandlerID("A"), hee.Handler)
	assert.ErrorIs(t, failure, boom)
}

func mustNumber(t *testing.T, v domain.Value) float64 {
	t.Helper()
	n, ok := v.AsNumber()
	require.True(t, ok)
	return n
}

func TestEngine_PanicAndArity(t *testing.T) {
	e := runtime.NewEngine()
	defer e.Close()
	_, err := e.Register(domain.HandlerSpec{ID: "panics", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca},
		Fn: func(context.Context, domain.Args) (domain.Result, error) { panic("kaboom") }})
	require.NoError(t, err)
	_, err = e.Register(domain.HandlerSpec{ID: "arity", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{cb},
		Fn: func(context.Context, domain.Args) (domain.Result, error) {
			return domain.Update(domain.Int(1), domain.Int(2)), nil
		}})
	require.NoError(t, err)

	report, err := e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.HandlerID{"panics", "arity"}, report.Failed)

	snap := e.Snapshot()
	a, _ := snap.Get(ca)
	b, _ := snap.Get(cb)
	assert.Contains(t, a.Error, "kaboom")
	assert.Contains(t, b.Error, domain.ErrOutputArity.Error())
}

func TestEngine_DispatchValidation(t *testing.T) {
	e, rec := chain(t)
	ctx := context.Background()

	_, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(domain.Cell("nope", "value"), domain.Int(1))))
	assert.ErrorIs(t, err, domain.ErrUnknownCell)

	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(1)), domain.Set(cb, domain.Int(1))))
	assert.ErrorIs(t, err, domain.ErrNotInputCell)
	assert.Equal(t, uint64(0), e.Snapshot().Cells[in].Version, "a rejected event writes nothing")
	assert.Zero(t, rec.count("A"))

	_, err = e.Dispatch(ctx, domain.NewEvent())
	assert.Error(t, err)
}

func TestEngine_Idempotent(t *testing.T) {
	e, rec := chain(t)
	ctx := context.Background()

	_, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(3))))
	require.NoError(t, err)
	first := number(t, e, cc)

	report, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(3))))
	require.NoError(t, err)

	assert.Equal(t, first, number(t, e, cc))
	assert.Len(t, report.Executed, 3, "writing an equal value still propagates")
	assert.Equal(t, 2, rec.count("C"))
}

func TestEngine_StartInitialPass(t *testing.T) {
	rec := newRecorder()
	e := runtime.NewEngine()
	defer e.Close()
	skipped := domain.Cell("skipped", "out")
	for _, s := range []domain.HandlerSpec{
		{ID: "A", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{ca}, Fn: plusOne(rec, "A")},
		{ID: "P", Inputs: []domain.CellID{in}, Outputs: []domain.CellID{skipped}, Fn: plusOne(rec, "P"), PreventInitialCall: true},
		{ID: "B", Inputs: []domain.CellID{ca}, Outputs: []domain.CellID{cb}, Fn: plusOne(rec, "B")},
	} {
		_, err := e.Register(s)
		require.NoError(t, err)
	}

	report, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerID{"A", "B"}, report.Executed)
	assert.Equal(t, 2.0, number(t, e, cb))
	assert.Zero(t, rec.count("P"))

	_, err = e.Start(context.Background())
	assert.Error(t, err, "start runs once")

	_, err = e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("P"), "prevent-initial handlers run on later events")
}

func TestEngine_StateDoesNotTrigger(t *testing.T) {
	rec := newRecorder()
	e := runtime.NewEngine()
	defer e.Close()
	button := domain.Cell("submit", "n_clicks")
	k := domain.Cell("k", "value")

	_, err := e.Register(domain.HandlerSpec{
		ID: "H", Inputs: []domain.CellID{button}, State: []domain.CellID{k}, Outputs: []domain.CellID{ca},
		Fn: func(_ context.Context, args domain.Args) (domain.Result, error) {
			rec.hit("H")
			return domain.Update(args.State(0)), nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	report, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(k, domain.Int(4))))
	require.NoError(t, err)
	assert.Empty(t, report.Executed)

	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(button, domain.Int(1))))
	require.NoError(t, err)
	assert.Equal(t, 4.0, number(t, e, ca), "state is read at invocation time")
}

func TestEngine_PublishesDiffs(t *testing.T) {
	e, _ := chain(t)

	var (
		mu    sync.Mutex
		diffs []*domain.SnapshotDiff
		seqs  []uint64
	)
	unsubscribe := e.Subscribe(func(snap *domain.Snapshot, diff *domain.SnapshotDiff) {
		mu.Lock()
		defer mu.Unlock()
		diffs = append(diffs, diff)
		seqs = append(seqs, snap.Seq)
	})

	ctx := context.Background()
	_, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(-1))))
	require.NoError(t, err)

	unsubscribe()
	_, err = e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(2))))
	require.NoError(t, err)

	require.Len(t, diffs, 2)
	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.Len(t, diffs[0].Changed, 4, "first publish carries every cell")
	assert.Len(t, diffs[1].Changed, 1, "a suppressed pass only moves the input")
	assert.Equal(t, uint64(3), e.Snapshot().Seq)
}

func TestEngine_RestoreDoesNotInvoke(t *testing.T) {
	e, rec := chain(t)
	ctx := context.Background()
	_, err := e.Dispatch(ctx, domain.NewEvent(domain.Set(in, domain.Int(1))))
	require.NoError(t, err)
	saved := e.Snapshot()

	other, otherRec := chain(t)
	assert.Equal(t, 4, other.Restore(saved))
	assert.Equal(t, 4.0, number(t, other, cc))
	assert.Zero(t, otherRec.count("A"))
	assert.Equal(t, 1, rec.count("A"))
}

func TestEngine_ClosedRejectsEvents(t *testing.T) {
	e, _ := chain(t)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "close is idempotent")

	_, err := e.Dispatch(context.Background(), domain.NewEvent(domain.Set(in, domain.Int(1))))
	assert.ErrorIs(t, err, domain.ErrEngineClosed)
}
