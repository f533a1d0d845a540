package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// ErrManagerClosed is returned by operations on a closed manager.
var ErrManagerClosed = errors.New("session manager closed")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps one engine per dashboard session, serializes access to each
// session and persists every published snapshot to the store.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	def   domain.Definition
	store ports.SnapshotStore

	mu       sync.Mutex               // Global lock for the maps
	locks    map[string]*lockEntry    // Map of active locks
	sessions map[string]*mosaic.Engine // Live engines by session ID
	closed   bool

	locker     ports.DistributedLocker // Optional distributed locker
	lockTTL    time.Duration
	engineOpts []mosaic.Option
	filter     EventFilter
	logger     *slog.Logger // Logger for internal events (like deferred errors)
}

// EventFilter inspects, rewrites or rejects an event before it is dispatched.
// runner.EventInterceptor values satisfy it.
type EventFilter func(ctx context.Context, ev domain.Event) (domain.Event, error)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
// Each locked operation then reloads the session from the store first, so
// that changes made by other replicas are seen.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEventFilter runs every dispatched event through filter first.
// A rejected event never reaches the session.
func WithEventFilter(filter EventFilter) Option {
	return func(m *Manager) {
		m.filter = filter
	}
}

// WithEngineOptions passes options to every engine the manager creates.
func WithEngineOptions(opts ...mosaic.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// NewManager creates a Session Manager serving def, persisting to store.
func NewManager(def domain.Definition, store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		def:      def,
		store:    store,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*mosaic.Engine),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// LoadOrStart returns the live engine of a session. A session unknown to this
// process is restored from the store, or started fresh with an initial pass.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (*mosaic.Engine, error) {
	var eng *mosaic.Engine
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		eng, err = m.engine(ctx, sessionID)
		return err
	})
	return eng, err
}

// Dispatch applies an event to a session, starting it if needed.
func (m *Manager) Dispatch(ctx context.Context, sessionID string, ev domain.Event) (*domain.PassReport, error) {
	if m.filter != nil {
		var err error
		if ev, err = m.filter(ctx, ev); err != nil {
			return nil, fmt.Errorf("event rejected: %w", err)
		}
	}
	var report *domain.PassReport
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.engine(ctx, sessionID)
		if err != nil {
			return err
		}
		report, err = eng.Dispatch(ctx, ev)
		return err
	})
	return report, err
}

// Snapshot returns the current state of a session. Sessions that are not
// live in this process are read from the store without starting them.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if eng := m.live(sessionID); eng != nil && m.locker == nil {
			snap = eng.Snapshot()
			return nil
		}
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snap, err
}

// Subscribe attaches a listener to a session's engine, starting the session
// if needed. The returned function detaches it.
func (m *Manager) Subscribe(ctx context.Context, sessionID string, fn mosaic.Listener) (func(), error) {
	eng, err := m.LoadOrStart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return eng.Subscribe(fn), nil
}

// Definition returns the dashboard every session runs.
func (m *Manager) Definition() domain.Definition {
	return m.def
}

// Delete stops the session and removes it from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		eng := m.sessions[sessionID]
		delete(m.sessions, sessionID)
		m.mu.Unlock()

		if eng != nil {
			if err := eng.Close(); err != nil {
				m.logger.Warn("Failed to close session engine", "session_id", sessionID, "err", err)
			}
		}
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Live returns the IDs of the sessions running in this process, sorted.
func (m *Manager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// Close stops every live session. Stored snapshots are kept.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*mosaic.Engine)
	m.mu.Unlock()

	var errs []error
	for id, eng := range sessions {
		if err := eng.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) live(sessionID string) *mosaic.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// engine returns the session's engine. The caller holds the session lock.
func (m *Manager) engine(ctx context.Context, sessionID string) (*mosaic.Engine, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	eng := m.sessions[sessionID]
	m.mu.Unlock()

	if eng != nil {
		if m.locker != nil {
			if err := m.refresh(ctx, sessionID, eng); err != nil {
				return nil, err
			}
		}
		return eng, nil
	}

	opts := append([]mosaic.Option{mosaic.WithLogger(m.logger.With("session_id", sessionID))}, m.engineOpts...)
	opts = append(opts, mosaic.WithSnapshotStore(m.store, sessionID))
	eng, err := mosaic.New(m.def, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session engine: %w", err)
	}
	if _, err := eng.Start(ctx); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	m.mu.Lock()
	m.sessions[sessionID] = eng
	m.mu.Unlock()
	m.logger.Debug("session started", "session_id", sessionID)
	return eng, nil
}

// refresh pulls the stored snapshot into a live engine.
func (m *Manager) refresh(ctx context.Context, sessionID string, eng *mosaic.Engine) error {
	snap, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	eng.Restore(snap)
	return nil
}
