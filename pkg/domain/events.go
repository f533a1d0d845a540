package domain

import (
	"context"
	"time"
)

// EventType defines the category of the lifecycle event.
type EventType string

const (
	EventPassStart      EventType = "pass_start"
	EventPassEnd        EventType = "pass_end"
	EventHandlerStart   EventType = "handler_start"
	EventHandlerEnd     EventType = "handler_end"
	EventStaleDiscarded EventType = "stale_discarded"
)

// Outcome summarizes what a handler invocation did.
type Outcome string

const (
	OutcomeUpdated    Outcome = "updated"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeFailed     Outcome = "failed"
	OutcomeDeferred   Outcome = "deferred"
	OutcomeStale      Outcome = "stale"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	PassID    string    `json:"pass_id"`
}

// PassEvent represents the start or end of a propagation pass.
type PassEvent struct {
	EventBase
	Changed  []CellID      `json:"changed"`
	Plan     []HandlerID   `json:"plan,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// HandlerEvent represents one handler invocation.
type HandlerEvent struct {
	EventBase
	Handler  HandlerID     `json:"handler"`
	Outcome  Outcome       `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks may be called from worker goroutines and must be safe for concurrent use.
type LifecycleHooks struct {
	OnPassStart      func(context.Context, *PassEvent)
	OnPassEnd        func(context.Context, *PassEvent)
	OnHandlerStart   func(context.Context, *HandlerEvent)
	OnHandlerEnd     func(context.Context, *HandlerEvent)
	OnStaleDiscarded func(context.Context, *HandlerEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnPassStart:      chain(h.OnPassStart, other.OnPassStart),
		OnPassEnd:        chain(h.OnPassEnd, other.OnPassEnd),
		OnHandlerStart:   chain(h.OnHandlerStart, other.OnHandlerStart),
		OnHandlerEnd:     chain(h.OnHandlerEnd, other.OnHandlerEnd),
		OnStaleDiscarded: chain(h.OnStaleDiscarded, other.OnStaleDiscarded),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
