package runtime

import (
	"context"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
)

func (e *Engine) emitPassStart(ctx context.Context, p *pass, changed []domain.CellID, plan []domain.HandlerID) {
	if e.hooks.OnPassStart == nil {
		return
	}
	e.hooks.OnPassStart(ctx, &domain.PassEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPassStart, PassID: p.id},
		Changed:   changed,
		Plan:      plan,
	})
}

func (e *Engine) emitPassEnd(ctx context.Context, p *pass, d time.Duration) {
	if e.hooks.OnPassEnd == nil {
		return
	}
	p.mu.Lock()
	changed := append([]domain.CellID(nil), p.report.Changed...)
	p.mu.Unlock()
	e.hooks.OnPassEnd(ctx, &domain.PassEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPassEnd, PassID: p.id},
		Changed:   changed,
		Duration:  d,
	})
}

func (e *Engine) emitHandlerStart(ctx context.Context, passID string, id domain.HandlerID) {
	if e.hooks.OnHandlerStart == nil {
		return
	}
	e.hooks.OnHandlerStart(ctx, &domain.HandlerEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventHandlerStart, PassID: passID},
		Handler:   id,
	})
}

func (e *Engine) emitHandlerEnd(ctx context.Context, passID string, id domain.HandlerID, outcome domain.Outcome, d time.Duration, err error) {
	if e.hooks.OnHandlerEnd == nil {
		return
	}
	e.hooks.OnHandlerEnd(ctx, &domain.HandlerEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventHandlerEnd, PassID: passID},
		Handler:   id,
		Outcome:   outcome,
		Duration:  d,
		Err:       err,
	})
}

func (e *Engine) emitStaleDiscarded(ctx context.Context, passID string, id domain.HandlerID, d time.Duration) {
	if e.hooks.OnStaleDiscarded == nil {
		return
	}
	e.hooks.OnStaleDiscarded(ctx, &domain.HandlerEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStaleDiscarded, PassID: passID},
		Handler:   id,
		Outcome:   domain.OutcomeStale,
		Duration:  d,
	})
}
