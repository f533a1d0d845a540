package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// pass is the per-event bookkeeping. Nothing in it survives the pass.
type pass struct {
	id      string
	initial bool

	mu     sync.Mutex
	dirty  map[domain.CellID]bool
	report *domain.PassReport
}

func newPass(initial bool) *pass {
	id := uuid.NewString()
	return &pass{
		id:      id,
		initial: initial,
		dirty:   make(map[domain.CellID]bool),
		report:  &domain.PassReport{PassID: id},
	}
}

func (p *pass) markDirty(cells ...domain.CellID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range cells {
		if !p.dirty[c] {
			p.dirty[c] = true
			p.report.Changed = append(p.report.Changed, c)
		}
	}
}

// triggered returns the handler's inputs changed in this pass.
func (p *pass) triggered(spec domain.HandlerSpec) []domain.CellID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.CellID
	for _, in := range spec.Inputs {
		if p.dirty[in] {
			out = append(out, in)
		}
	}
	return out
}

func (p *pass) record(id domain.HandlerID, outcome domain.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.report
	if outcome != domain.OutcomeDeferred {
		r.Executed = append(r.Executed, id)
	}
	switch outcome {
	case domain.OutcomeSuppressed:
		r.Suppressed = append(r.Suppressed, id)
	case domain.OutcomeFailed:
		r.Failed = append(r.Failed, id)
	case domain.OutcomeDeferred:
		r.Deferred = append(r.Deferred, id)
	case domain.OutcomeStale:
		r.Stale = append(r.Stale, id)
	}
}

// runPass plans from the changed cells, executes and publishes.
func (e *Engine) runPass(ctx context.Context, p *pass, changed []domain.CellID) {
	start := time.Now()
	plan := e.graph.Affected(changed)

	e.emitPassStart(ctx, p, changed, plan)
	e.logger.Debug("pass started", "pass_id", p.id, "changed", len(changed), "plan", len(plan))

	if e.workers > 1 {
		groups := e.graph.Partition(plan)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for _, group := range groups {
			g.Go(func() error {
				e.execute(gctx, p, group)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		e.execute(ctx, p, plan)
	}

	e.publish()

	duration := time.Since(start)
	e.emitPassEnd(ctx, p, duration)
	e.logger.Debug("pass finished",
		"pass_id", p.id,
		"executed", len(p.report.Executed),
		"deferred", len(p.report.Deferred),
		"failed", len(p.report.Failed),
		"duration", duration,
	)
}

// execute runs planned handlers in order. A handler runs only when one of
// its inputs changed in this pass, except during the initial pass.
func (e *Engine) execute(ctx context.Context, p *pass, plan []domain.HandlerID) {
	for _, id := range plan {
		if ctx.Err() != nil {
			return
		}
		hs := e.handler(id)
		if hs == nil {
			continue
		}
		spec := hs.handle.Spec
		triggered := p.triggered(spec)
		if len(triggered) == 0 {
			if !p.initial || spec.PreventInitialCall {
				continue
			}
			triggered = spec.Inputs
		}

		if spec.Async {
			e.launch(ctx, p, hs, triggered)
			continue
		}
		e.runSync(ctx, p, hs, triggered)
	}
}

func (e *Engine) runSync(ctx context.Context, p *pass, hs *handlerState, triggered []domain.CellID) {
	spec := hs.handle.Spec

	hs.mu.Lock()
	defer hs.mu.Unlock()

	e.emitHandlerStart(ctx, p.id, spec.ID)
	start := time.Now()

	in := e.capture(spec, triggered)
	res, err := e.invoke(ctx, spec, in.args)

	if e.moved(spec, in.versions) {
		e.discard(ctx, p.id, spec.ID, time.Since(start))
		p.record(spec.ID, domain.OutcomeStale)
		return
	}

	outcome := e.commit(spec, res, err, p.id)
	if outcome == domain.OutcomeUpdated {
		p.markDirty(written(spec, res)...)
	}
	p.record(spec.ID, outcome)
	e.emitHandlerEnd(ctx, p.id, spec.ID, outcome, time.Since(start), err)
}

type captured struct {
	args     domain.Args
	versions []uint64
}

// capture reads inputs and state and remembers input versions.
func (e *Engine) capture(spec domain.HandlerSpec, triggered []domain.CellID) captured {
	inputs := make([]domain.Value, len(spec.Inputs))
	versions := make([]uint64, len(spec.Inputs))
	for i, c := range spec.Inputs {
		inputs[i], versions[i], _ = e.store.Read(c)
	}
	state := make([]domain.Value, len(spec.State))
	for i, c := range spec.State {
		state[i], _ = e.store.Get(c)
	}
	return captured{
		args:     domain.NewArgs(inputs, state, append([]domain.CellID(nil), triggered...)...),
		versions: versions,
	}
}

// moved reports whether any input was written since capture.
func (e *Engine) moved(spec domain.HandlerSpec, versions []uint64) bool {
	for i, c := range spec.Inputs {
		if e.store.Version(c) != versions[i] {
			return true
		}
	}
	return false
}

// commit stores a result and returns what happened. Failed handlers keep
// their previous output values; the outputs are marked as errored.
func (e *Engine) commit(spec domain.HandlerSpec, res domain.Result, err error, passID string) domain.Outcome {
	if err != nil {
		for _, out := range spec.Outputs {
			e.store.MarkError(out, err)
		}
		e.logger.Error("handler failed", "pass_id", passID, "handler", spec.ID, "err", err)
		return domain.OutcomeFailed
	}
	if res.Suppressed() {
		for _, out := range spec.Outputs {
			e.store.ClearPending(out)
		}
		return domain.OutcomeSuppressed
	}

	values := res.Values()
	wrote := false
	for i, out := range spec.Outputs {
		if values[i].IsNoUpdate() {
			e.store.ClearPending(out)
			continue
		}
		if _, err := e.store.Set(out, values[i]); err != nil {
			e.logger.Error("commit failed", "pass_id", passID, "handler", spec.ID, "cell", out, "err", err)
			continue
		}
		wrote = true
	}
	if !wrote {
		return domain.OutcomeSuppressed
	}
	return domain.OutcomeUpdated
}

// written lists the outputs a committed result actually wrote.
func written(spec domain.HandlerSpec, res domain.Result) []domain.CellID {
	if res.Suppressed() {
		return nil
	}
	values := res.Values()
	out := make([]domain.CellID, 0, len(spec.Outputs))
	for i, c := range spec.Outputs {
		if i < len(values) && !values[i].IsNoUpdate() {
			out = append(out, c)
		}
	}
	return out
}
