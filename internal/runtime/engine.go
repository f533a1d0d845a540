package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/mosaic/internal/cellstore"
	"github.com/aretw0/mosaic/internal/depgraph"
	"github.com/aretw0/mosaic/pkg/domain"
)

// Engine is the propagation core: it owns the cell store and the handler
// graph, runs passes and publishes snapshots.
type Engine struct {
	store  *cellstore.Store
	graph  *depgraph.Graph
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	workers int

	handlersMu sync.RWMutex
	handlers   map[domain.HandlerID]*handlerState

	// closeMu orders async launches against Close.
	closeMu sync.RWMutex
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc
	work    *tracker

	started atomic.Bool

	pub publisher
}

// handlerState serializes one handler against itself.
type handlerState struct {
	handle *depgraph.Handle
	mu     sync.Mutex

	// genMu guards the async generation bookkeeping.
	genMu  sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithWorkers runs independent parts of a plan on up to n goroutines.
// n <= 1 keeps execution strictly sequential.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine creates an engine with no cells and no handlers.
func NewEngine(opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:    cellstore.New(),
		graph:    depgraph.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers:  1,
		handlers: make(map[domain.HandlerID]*handlerState),
		baseCtx:  ctx,
		cancel:   cancel,
		work:     newTracker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Declare adds a cell with an initial value. The initial value is not a
// write: the cell stays at version 0.
func (e *Engine) Declare(cell domain.CellID, initial domain.Value) error {
	if cell.IsZero() {
		return fmt.Errorf("declare: invalid cell id %q", cell)
	}
	if initial.IsNoUpdate() {
		return fmt.Errorf("declare %s: no_update is not a value", cell)
	}
	e.store.Declare(cell, initial)
	return nil
}

// Register validates and adds a handler. On error nothing is registered.
func (e *Engine) Register(spec domain.HandlerSpec) (*depgraph.Handle, error) {
	if e.isClosed() {
		return nil, domain.ErrEngineClosed
	}
	h, err := e.graph.Register(spec)
	if err != nil {
		return nil, err
	}
	for _, out := range spec.Outputs {
		e.store.Claim(out, spec.ID)
	}
	for _, in := range spec.Inputs {
		e.store.Subscribe(in, spec.ID)
	}
	for _, st := range spec.State {
		e.store.Declare(st, domain.Unset())
	}

	e.handlersMu.Lock()
	e.handlers[spec.ID] = &handlerState{handle: h}
	e.handlersMu.Unlock()

	e.logger.Debug("handler registered", "handler", spec.ID, "inputs", len(spec.Inputs), "outputs", len(spec.Outputs), "async", spec.Async)
	return h, nil
}

func (e *Engine) handler(id domain.HandlerID) *handlerState {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	return e.handlers[id]
}

// Start runs the initial pass: every handler not flagged PreventInitialCall
// is invoked once, in topological order. It can only be called once.
func (e *Engine) Start(ctx context.Context) (*domain.PassReport, error) {
	if e.isClosed() {
		return nil, domain.ErrEngineClosed
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil, errors.New("engine already started")
	}
	p := newPass(true)
	e.runPass(ctx, p, e.store.IDs())
	return p.report, ctx.Err()
}

// Dispatch applies an external event and runs one propagation pass.
// The whole event is validated before any cell is written.
func (e *Engine) Dispatch(ctx context.Context, ev domain.Event) (*domain.PassReport, error) {
	if e.isClosed() {
		return nil, domain.ErrEngineClosed
	}
	if len(ev.Changes) == 0 {
		return nil, errors.New("dispatch: event has no changes")
	}
	for _, c := range ev.Changes {
		owner, ok := e.store.Owner(c.Cell)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCell, c.Cell)
		}
		if owner != "" {
			return nil, fmt.Errorf("%w: %s (written by %s)", domain.ErrNotInputCell, c.Cell, owner)
		}
		if c.Value.IsNoUpdate() {
			return nil, fmt.Errorf("dispatch %s: no_update is not a value", c.Cell)
		}
	}

	p := newPass(false)
	for _, c := range ev.Changes {
		if _, err := e.store.Set(c.Cell, c.Value); err != nil {
			return nil, err
		}
		p.markDirty(c.Cell)
	}
	e.runPass(ctx, p, ev.Cells())
	return p.report, ctx.Err()
}

// Get returns the current value of a cell.
func (e *Engine) Get(cell domain.CellID) (domain.Value, bool) {
	v, ok := e.store.Get(cell)
	return v.Clone(), ok
}

// Snapshot returns the state of every cell, stamped with the last published sequence.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.store.Snapshot(e.pub.current())
}

// Restore loads cell values from a snapshot and publishes the result.
// No handler is invoked.
func (e *Engine) Restore(snap *domain.Snapshot) int {
	n := e.store.Restore(snap)
	e.publish()
	return n
}

// Handlers returns the registered handlers in registration order.
func (e *Engine) Handlers() []*depgraph.Handle {
	return e.graph.Handlers()
}

// Inputs returns the cells external events may set.
func (e *Engine) Inputs() []domain.CellID {
	return e.store.Inputs()
}

// Plan returns the handlers a change of the given cells would consider, in order.
func (e *Engine) Plan(changed ...domain.CellID) []domain.HandlerID {
	return e.graph.Affected(changed)
}

// Subscribe registers a listener for published snapshots. The returned
// function removes it. Listeners run synchronously and must not dispatch.
func (e *Engine) Subscribe(fn Listener) func() {
	return e.pub.add(fn)
}

// Wait blocks until no async invocation is in flight.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.work.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight async work, waits for it to stop and rejects
// further events. Handlers that ignore their context delay Close.
func (e *Engine) Close() error {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return nil
	}
	e.closed = true
	e.cancel()
	e.closeMu.Unlock()

	<-e.work.wait()
	e.logger.Debug("engine closed")
	return nil
}

func (e *Engine) isClosed() bool {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	return e.closed
}

// tracker counts in-flight async invocations.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func newTracker() *tracker {
	ch := make(chan struct{})
	close(ch)
	return &tracker{idle: ch}
}

func (t *tracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

func (t *tracker) wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}
