package runtime

import (
	"context"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
)

// launch starts an async invocation. Its outputs go pending and the pass
// moves on. A newer launch of the same handler cancels the older one.
func (e *Engine) launch(ctx context.Context, p *pass, hs *handlerState, triggered []domain.CellID) {
	spec := hs.handle.Spec

	e.closeMu.RLock()
	if e.closed {
		e.closeMu.RUnlock()
		return
	}
	e.work.add()
	e.closeMu.RUnlock()

	in := e.capture(spec, triggered)

	wctx, cancel := context.WithCancel(e.baseCtx)
	hs.genMu.Lock()
	if hs.cancel != nil {
		hs.cancel()
	}
	hs.gen++
	gen := hs.gen
	hs.cancel = cancel
	hs.genMu.Unlock()

	for _, out := range spec.Outputs {
		e.store.MarkPending(out)
	}
	p.record(spec.ID, domain.OutcomeDeferred)
	e.emitHandlerStart(ctx, p.id, spec.ID)
	e.logger.Debug("async handler launched", "pass_id", p.id, "handler", spec.ID, "generation", gen)

	go func() {
		defer e.work.done()
		defer cancel()
		e.finish(wctx, p.id, hs, gen, in)
	}()
}

// finish runs on the worker: invoke, then commit unless a newer invocation
// or a newer input write superseded this one.
func (e *Engine) finish(ctx context.Context, passID string, hs *handlerState, gen uint64, in captured) {
	spec := hs.handle.Spec
	start := time.Now()

	res, err := e.invoke(ctx, spec, in.args)

	hs.mu.Lock()
	hs.genMu.Lock()
	latest := hs.gen == gen
	hs.genMu.Unlock()

	if e.isClosed() {
		hs.mu.Unlock()
		for _, out := range spec.Outputs {
			e.store.ClearPending(out)
		}
		return
	}
	if !latest || e.moved(spec, in.versions) {
		hs.mu.Unlock()
		e.discard(ctx, passID, spec.ID, time.Since(start))
		return
	}

	outcome := e.commit(spec, res, err, passID)
	hs.mu.Unlock()
	e.emitHandlerEnd(ctx, passID, spec.ID, outcome, time.Since(start), err)

	if outcome != domain.OutcomeUpdated {
		e.publish()
		return
	}

	// The fresh result is a change of its own: propagate it downstream.
	// ctx belongs to this invocation and is cancelled by the next launch;
	// the committed value must still reach its dependents.
	p := newPass(false)
	changed := written(spec, res)
	p.markDirty(changed...)
	e.runPass(e.baseCtx, p, changed)
}

func (e *Engine) discard(ctx context.Context, passID string, id domain.HandlerID, d time.Duration) {
	e.logger.Debug("stale result discarded", "pass_id", passID, "handler", id, "duration", d)
	e.emitStaleDiscarded(ctx, passID, id, d)
	e.emitHandlerEnd(ctx, passID, id, domain.OutcomeStale, d, domain.ErrStaleResult)
}
