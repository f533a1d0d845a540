package mosaic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/internal/runtime"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/ports"
)

// Engine is the high-level entry point for the mosaic library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime   *runtime.Engine
	def       domain.Definition
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	workers   int
	renderers []ports.Renderer
	store     ports.SnapshotStore
	storeKey  string
	saver     *persister
	unsub     []func()
	Name      string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// Listener receives every published snapshot and its diff against the previous one.
type Listener func(snap *domain.Snapshot, diff *domain.SnapshotDiff)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWorkers lets independent parts of a pass run on up to n goroutines.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithRenderer adds a passive consumer of published snapshots.
func WithRenderer(r ports.Renderer) Option {
	return func(e *Engine) {
		e.renderers = append(e.renderers, r)
	}
}

// WithSnapshotStore persists every published snapshot under key. On Start,
// a stored snapshot is restored instead of running the initial pass.
// Saves run outside the publish path; Start, Dispatch, Set, Wait and Close
// return only once the latest snapshot reached the store.
func WithSnapshotStore(store ports.SnapshotStore, key string) Option {
	return func(e *Engine) {
		e.store = store
		e.storeKey = key
	}
}

// New validates the definition and registers every handler.
// Duplicate outputs and cycles abort construction.
func New(def domain.Definition, opts ...Option) (*Engine, error) {
	eng := &Engine{def: def, Name: def.Name, workers: 1}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("graph", eng.Name)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	eng.runtime = runtime.NewEngine(
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithWorkers(eng.workers),
	)

	ids := make([]domain.CellID, 0, len(def.Cells))
	for id := range def.Cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if err := eng.runtime.Declare(id, def.Cells[id]); err != nil {
			return nil, err
		}
	}
	for _, spec := range def.Handlers {
		if _, err := eng.runtime.Register(spec); err != nil {
			_ = eng.runtime.Close()
			return nil, fmt.Errorf("register handler %s: %w", spec.ID, err)
		}
	}

	for _, r := range eng.renderers {
		eng.unsub = append(eng.unsub, eng.runtime.Subscribe(eng.render(r)))
	}
	if eng.store != nil {
		eng.saver = newPersister(eng.store, eng.storeKey, eng.logger)
		eng.unsub = append(eng.unsub, eng.runtime.Subscribe(eng.saver.offer))
	}

	eng.logger.Debug("engine ready", "handlers", len(def.Handlers), "cells", len(ids))
	return eng, nil
}

func (e *Engine) render(r ports.Renderer) runtime.Listener {
	return func(snap *domain.Snapshot, diff *domain.SnapshotDiff) {
		if err := r.Render(context.Background(), snap, diff); err != nil {
			e.logger.Warn("renderer failed", "seq", snap.Seq, "err", err)
		}
	}
}

func (e *Engine) flush(ctx context.Context) error {
	if e.saver == nil {
		return nil
	}
	if err := e.saver.flush(ctx); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Start runs the initial pass. With a snapshot store holding a snapshot for
// this engine, the snapshot is restored instead and the report is empty.
func (e *Engine) Start(ctx context.Context) (*domain.PassReport, error) {
	if e.store != nil {
		snap, err := e.store.Load(ctx, e.storeKey)
		switch {
		case err == nil:
			n := e.runtime.Restore(snap)
			e.logger.Info("snapshot restored", "session", e.storeKey, "cells", n, "seq", snap.Seq)
			return &domain.PassReport{}, e.flush(ctx)
		case !errors.Is(err, domain.ErrSnapshotNotFound):
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}
	report, err := e.runtime.Start(ctx)
	if err != nil {
		return report, err
	}
	return report, e.flush(ctx)
}

// Dispatch applies an external event and runs one propagation pass.
func (e *Engine) Dispatch(ctx context.Context, ev domain.Event) (*domain.PassReport, error) {
	report, err := e.runtime.Dispatch(ctx, ev)
	if err != nil {
		return report, err
	}
	return report, e.flush(ctx)
}

// Set is a single-cell Dispatch.
func (e *Engine) Set(ctx context.Context, cell domain.CellID, v domain.Value) (*domain.PassReport, error) {
	return e.Dispatch(ctx, domain.NewEvent(domain.Set(cell, v)))
}

// Get returns the current value of a cell.
func (e *Engine) Get(cell domain.CellID) (domain.Value, bool) {
	return e.runtime.Get(cell)
}

// Snapshot returns the state of every cell.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.runtime.Snapshot()
}

// Restore loads cell values from a snapshot without invoking handlers.
func (e *Engine) Restore(snap *domain.Snapshot) int {
	return e.runtime.Restore(snap)
}

// Subscribe registers a listener for published snapshots and returns a function removing it.
// Listeners run synchronously after each commit and must not dispatch.
func (e *Engine) Subscribe(fn Listener) func() {
	return e.runtime.Subscribe(runtime.Listener(fn))
}

// Inspect returns the registered handlers in registration order, for
// visualization or introspection tools.
func (e *Engine) Inspect() []domain.HandlerSpec {
	handles := e.runtime.Handlers()
	specs := make([]domain.HandlerSpec, len(handles))
	for i, h := range handles {
		specs[i] = h.Spec
	}
	return specs
}

// Inputs returns the cells external events may set.
func (e *Engine) Inputs() []domain.CellID {
	return e.runtime.Inputs()
}

// Plan returns, in execution order, the handlers a change of cells would consider.
func (e *Engine) Plan(cells ...domain.CellID) []domain.HandlerID {
	return e.runtime.Plan(cells...)
}

// Wait blocks until no async handler is in flight.
func (e *Engine) Wait(ctx context.Context) error {
	if err := e.runtime.Wait(ctx); err != nil {
		return err
	}
	return e.flush(ctx)
}

// Close cancels in-flight work and rejects further events.
func (e *Engine) Close() error {
	for _, f := range e.unsub {
		f()
	}
	e.unsub = nil
	err := e.runtime.Close()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return errors.Join(err, e.flush(ctx))
}
