package mosaic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/ports"
)

// flushTimeout bounds how long Close waits for the last snapshot to be saved.
const flushTimeout = 10 * time.Second

// persister saves published snapshots outside the publisher lock. Only the
// newest pending snapshot is kept: a save replaces the previous one anyway,
// and a single saver goroutine keeps the stored sequence monotonic.
type persister struct {
	store  ports.SnapshotStore
	key    string
	logger *slog.Logger

	mu   sync.Mutex
	next *domain.Snapshot
	// idle is closed once nothing is queued or being saved. Nil when idle.
	idle chan struct{}
}

func newPersister(store ports.SnapshotStore, key string, logger *slog.Logger) *persister {
	return &persister{store: store, key: key, logger: logger}
}

// offer queues snap, replacing any snapshot not yet picked up.
func (p *persister) offer(snap *domain.Snapshot, _ *domain.SnapshotDiff) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = snap
	if p.idle == nil {
		p.idle = make(chan struct{})
		go p.run(p.idle)
	}
}

func (p *persister) run(idle chan struct{}) {
	for {
		p.mu.Lock()
		snap := p.next
		p.next = nil
		if snap == nil {
			p.idle = nil
			p.mu.Unlock()
			close(idle)
			return
		}
		p.mu.Unlock()

		if err := p.store.Save(context.Background(), p.key, snap); err != nil {
			p.logger.Error("failed to persist snapshot", "session", p.key, "seq", snap.Seq, "err", err)
		}
	}
}

// flush waits until every offered snapshot has been handed to the store.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
