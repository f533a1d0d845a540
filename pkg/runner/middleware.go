package runner

import (
	"context"
	"fmt"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/schema"
)

// EventInterceptor is a middleware that can inspect, rewrite, or reject an
// external event before it is dispatched. A rejection is an error.
type EventInterceptor func(ctx context.Context, ev domain.Event) (domain.Event, error)

// MultiInterceptor chains multiple interceptors; each sees the previous one's result.
func MultiInterceptor(interceptors ...EventInterceptor) EventInterceptor {
	return func(ctx context.Context, ev domain.Event) (domain.Event, error) {
		for _, interceptor := range interceptors {
			var err error
			if ev, err = interceptor(ctx, ev); err != nil {
				return domain.Event{}, err
			}
		}
		return ev, nil
	}
}

// SanitizeMiddleware cleans every text value of an event, see Sanitizer.
func SanitizeMiddleware() EventInterceptor {
	return func(_ context.Context, ev domain.Event) (domain.Event, error) {
		return SanitizeEvent(ev)
	}
}

// ReadOnlyMiddleware rejects events targeting any of the given cells. It lets
// a host pin inputs (e.g. a kiosk dashboard with a fixed year).
func ReadOnlyMiddleware(cells ...domain.CellID) EventInterceptor {
	locked := make(map[domain.CellID]bool, len(cells))
	for _, c := range cells {
		locked[c] = true
	}
	return func(_ context.Context, ev domain.Event) (domain.Event, error) {
		for _, c := range ev.Changes {
			if locked[c.Cell] {
				return domain.Event{}, fmt.Errorf("cell %s is read-only", c.Cell)
			}
		}
		return ev, nil
	}
}

// SchemaMiddleware rejects events whose values do not match the input schema.
func SchemaMiddleware(s schema.Schema) EventInterceptor {
	return func(_ context.Context, ev domain.Event) (domain.Event, error) {
		if err := schema.ValidateEvent(s, ev); err != nil {
			return domain.Event{}, err
		}
		return ev, nil
	}
}

// PassThroughMiddleware allows everything.
func PassThroughMiddleware() EventInterceptor {
	return func(_ context.Context, ev domain.Event) (domain.Event, error) {
		return ev, nil
	}
}
