package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/domain"
)

// ErrNoEngine is returned by Run when no engine was configured.
var ErrNoEngine = errors.New("runner: no engine configured")

// Runner handles the read-dispatch loop of a mosaic engine using provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Interceptor filters events before dispatch.
	// If nil, defaults to SanitizeMiddleware.
	Interceptor EventInterceptor

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	DrainTimeout time.Duration

	engine    *mosaic.Engine
	noSignals bool
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:       logging.NewNop(),
		DrainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the engine and dispatches every event the handler reads until
// the input ends, the context is cancelled, or a signal arrives. Rejected
// events are reported through SystemOutput and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return ErrNoEngine
	}
	handler := r.resolveHandler()
	interceptor := r.resolveInterceptor()

	var signals *SignalManager
	if !r.noSignals {
		signals = NewSignalManager(ctx)
		defer signals.Stop()
		ctx = signals.Context()
	}

	unsub := r.engine.Subscribe(func(snap *domain.Snapshot, diff *domain.SnapshotDiff) {
		if err := handler.Output(ctx, snap, diff); err != nil {
			r.Logger.Warn("output failed", "seq", snap.Seq, "err", err)
		}
	})
	defer unsub()

	report, err := r.engine.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	if err := handler.Report(ctx, report); err != nil {
		return fmt.Errorf("output error: %w", err)
	}

	for {
		ev, err := handler.Input(ctx)
		if err != nil {
			if signals != nil {
				signals.CheckRace()
			}
			var inputErr *InputError
			switch {
			case ctx.Err() != nil:
				r.Logger.Debug("runner input: context cancelled", "err", ctx.Err())
				return nil
			case errors.Is(err, io.EOF):
				return r.drain(ctx)
			case errors.As(err, &inputErr):
				if err := handler.SystemOutput(ctx, err.Error()); err != nil {
					return fmt.Errorf("output error: %w", err)
				}
				continue
			}
			return fmt.Errorf("input error: %w", err)
		}

		if err := r.dispatch(ctx, handler, interceptor, ev); err != nil {
			return err
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, handler IOHandler, interceptor EventInterceptor, ev domain.Event) error {
	ev, err := interceptor(ctx, ev)
	if err != nil {
		return handler.SystemOutput(ctx, fmt.Sprintf("event rejected: %v", err))
	}

	report, err := r.engine.Dispatch(ctx, ev)
	switch {
	case errors.Is(err, domain.ErrUnknownCell), errors.Is(err, domain.ErrNotInputCell):
		return handler.SystemOutput(ctx, err.Error())
	case err != nil:
		return fmt.Errorf("dispatch error: %w", err)
	}
	r.Logger.Debug("event dispatched", "pass_id", report.PassID, "changed", len(report.Changed))
	return handler.Report(ctx, report)
}

// drain waits for async handlers so that their results reach the handler.
func (r *Runner) drain(ctx context.Context) error {
	if r.DrainTimeout <= 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, r.DrainTimeout)
	defer cancel()
	if err := r.engine.Wait(waitCtx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("waiting for async handlers: %w", err)
	}
	return nil
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}

// resolveInterceptor returns the configured or default interceptor.
func (r *Runner) resolveInterceptor() EventInterceptor {
	if r.Interceptor != nil {
		return r.Interceptor
	}
	return SanitizeMiddleware()
}
