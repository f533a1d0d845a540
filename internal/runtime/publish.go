package runtime

import (
	"slices"
	"sync"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Listener receives every published snapshot and its diff against the
// previously published one.
type Listener func(snap *domain.Snapshot, diff *domain.SnapshotDiff)

type publisher struct {
	mu        sync.Mutex
	seq       uint64
	last      *domain.Snapshot
	next      int
	listeners map[int]Listener
}

func (p *publisher) add(fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listeners == nil {
		p.listeners = make(map[int]Listener)
	}
	id := p.next
	p.next++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *publisher) current() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// publish takes a snapshot of the store and hands it to the listeners when
// anything moved since the previous one.
func (e *Engine) publish() {
	p := &e.pub
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := e.store.Snapshot(p.seq + 1)
	diff := domain.Diff(p.last, snap)
	if diff.Empty() {
		return
	}
	p.seq++
	p.last = snap

	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p.listeners[id](snap.Clone(), diff)
	}
}
