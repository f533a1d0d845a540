package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/mosaic/pkg/domain"
)

// LoggingHooks logs every lifecycle event to logger.
// Passes and successful handlers log at Debug; failures at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassStart: func(ctx context.Context, e *domain.PassEvent) {
			logger.DebugContext(ctx, "pass_start", "pass_id", e.PassID, "changed", len(e.Changed), "plan", e.Plan)
		},
		OnPassEnd: func(ctx context.Context, e *domain.PassEvent) {
			logger.DebugContext(ctx, "pass_end", "pass_id", e.PassID, "changed", len(e.Changed), "duration", e.Duration)
		},
		OnHandlerEnd: func(ctx context.Context, e *domain.HandlerEvent) {
			if e.Outcome == domain.OutcomeFailed {
				logger.WarnContext(ctx, "handler_end", "pass_id", e.PassID, "handler", e.Handler, "outcome", e.Outcome, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "handler_end", "pass_id", e.PassID, "handler", e.Handler, "outcome", e.Outcome, "duration", e.Duration)
		},
		OnStaleDiscarded: func(ctx context.Context, e *domain.HandlerEvent) {
			logger.DebugContext(ctx, "stale_discarded", "pass_id", e.PassID, "handler", e.Handler)
		},
	}
}
