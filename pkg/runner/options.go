package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/mosaic"
)

// DefaultDrainTimeout bounds how long Run waits for async handlers after the input ends.
const DefaultDrainTimeout = 30 * time.Second

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithInterceptor configures the event middleware.
func WithInterceptor(interceptor EventInterceptor) Option {
	return func(r *Runner) {
		r.Interceptor = interceptor
	}
}

// WithEngine configures the mosaic engine to drive. It is required.
func WithEngine(engine *mosaic.Engine) Option {
	return func(r *Runner) {
		r.engine = engine
	}
}

// WithDrainTimeout sets how long Run waits for in-flight async handlers once
// the input is exhausted. Zero skips waiting.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.DrainTimeout = d
	}
}

// WithoutSignals stops Run from listening for SIGINT/SIGTERM.
func WithoutSignals() Option {
	return func(r *Runner) {
		r.noSignals = true
	}
}
