// Package cellstore holds the current value of every addressable UI property.
//
// The set of cells is fixed once the graph is built. Each cell carries its own
// lock and a monotonically increasing version, so handlers that do not share
// outputs never contend on a store-wide lock.
package cellstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/mosaic/pkg/domain"
)

type entry struct {
	mu      sync.RWMutex
	value   domain.Value
	version uint64
	status  domain.CellStatus
	errMsg  string

	// owner is the handler writing this cell; empty for input cells.
	owner domain.HandlerID
	// subscribers are the handlers reading this cell as an input.
	subscribers []domain.HandlerID
}

// Store implements the cell table. Safe for concurrent use.
type Store struct {
	// mu protects the cells map itself, not the entries.
	mu    sync.RWMutex
	cells map[domain.CellID]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{cells: make(map[domain.CellID]*entry)}
}

// Declare adds a cell if missing. Declaring an existing cell is a no-op,
// except that an initial value replaces a still-unset value.
func (s *Store) Declare(id domain.CellID, initial domain.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.cells[id]; ok {
		if e.value.IsUnset() && !initial.IsUnset() {
			e.value = initial.Clone()
		}
		return
	}
	s.cells[id] = &entry{value: initial.Clone(), status: domain.StatusOK}
}

// Claim records the handler that owns (writes) a cell, declaring it if needed.
func (s *Store) Claim(id domain.CellID, owner domain.HandlerID) {
	s.Declare(id, domain.Unset())
	e := s.lookup(id)
	e.mu.Lock()
	e.owner = owner
	e.mu.Unlock()
}

// Owner returns the handler writing a cell, or "" for input cells.
func (s *Store) Owner(id domain.CellID) (domain.HandlerID, bool) {
	e := s.lookup(id)
	if e == nil {
		return "", false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner, true
}

// Has reports whether a cell is declared.
func (s *Store) Has(id domain.CellID) bool {
	return s.lookup(id) != nil
}

func (s *Store) lookup(id domain.CellID) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[id]
}

// Get returns the current value of a cell.
func (s *Store) Get(id domain.CellID) (domain.Value, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Unset(), false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, true
}

// Version returns the write generation of a cell (0 = never written).
func (s *Store) Version(id domain.CellID) uint64 {
	e := s.lookup(id)
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Read returns value and version consistently.
func (s *Store) Read(id domain.CellID) (domain.Value, uint64, bool) {
	e := s.lookup(id)
	if e == nil {
		return domain.Unset(), 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.version, true
}

// Set writes a value, bumps the version and clears any error state.
func (s *Store) Set(id domain.CellID, v domain.Value) (uint64, error) {
	if v.IsNoUpdate() {
		return 0, fmt.Errorf("cell %s: no_update marker cannot be stored", id)
	}
	e := s.lookup(id)
	if e == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownCell, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v.Clone()
	e.version++
	e.status = domain.StatusOK
	e.errMsg = ""
	return e.version, nil
}

// MarkError flags a cell as stale: its value stays at the last known good one.
func (s *Store) MarkError(id domain.CellID, cause error) {
	e := s.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = domain.StatusError
	if cause != nil {
		e.errMsg = cause.Error()
	}
}

// MarkPending flags a cell as being recomputed by an async handler.
func (s *Store) MarkPending(id domain.CellID) {
	e := s.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = domain.StatusPending
}

// ClearPending restores the OK status of a pending cell without writing it.
func (s *Store) ClearPending(id domain.CellID) {
	e := s.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == domain.StatusPending {
		e.status = domain.StatusOK
	}
}

// Subscribe records that a handler reads a cell as an input.
func (s *Store) Subscribe(id domain.CellID, handler domain.HandlerID) {
	s.Declare(id, domain.Unset())
	e := s.lookup(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.subscribers {
		if h == handler {
			return
		}
	}
	e.subscribers = append(e.subscribers, handler)
}

// Subscribers returns the handlers reading a cell as an input, in subscription order.
func (s *Store) Subscribers(id domain.CellID) []domain.HandlerID {
	e := s.lookup(id)
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.HandlerID(nil), e.subscribers...)
}

// IDs returns every declared cell in stable order.
func (s *Store) IDs() []domain.CellID {
	s.mu.RLock()
	ids := make([]domain.CellID, 0, len(s.cells))
	for id := range s.cells {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Inputs returns the cells no handler writes, in stable order.
func (s *Store) Inputs() []domain.CellID {
	var out []domain.CellID
	for _, id := range s.IDs() {
		if owner, _ := s.Owner(id); owner == "" {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot copies the state of every cell. seq is stamped on the result.
// Cells are read one at a time, so the snapshot is per-cell consistent.
func (s *Store) Snapshot(seq uint64) *domain.Snapshot {
	s.mu.RLock()
	entries := make(map[domain.CellID]*entry, len(s.cells))
	for id, e := range s.cells {
		entries[id] = e
	}
	s.mu.RUnlock()

	snap := &domain.Snapshot{Seq: seq, Cells: make(map[domain.CellID]domain.CellState, len(entries))}
	for id, e := range entries {
		e.mu.RLock()
		snap.Cells[id] = domain.CellState{
			Value:   e.value.Clone(),
			Version: e.version,
			Status:  e.status,
			Error:   e.errMsg,
		}
		e.mu.RUnlock()
	}
	return snap
}

// Restore loads values and versions from a snapshot for cells that exist in
// the store. A pending cell comes back as an error: its value is the last
// known good one and the work that would have replaced it is gone.
func (s *Store) Restore(snap *domain.Snapshot) int {
	if snap == nil {
		return 0
	}
	restored := 0
	for id, c := range snap.Cells {
		e := s.lookup(id)
		if e == nil {
			continue
		}
		e.mu.Lock()
		e.value = c.Value.Clone()
		e.version = c.Version
		e.status = c.Status
		e.errMsg = c.Error
		switch e.status {
		case domain.StatusPending:
			e.status = domain.StatusError
			e.errMsg = domain.ErrInterrupted.Error()
		case "":
			e.status = domain.StatusOK
		}
		e.mu.Unlock()
		restored++
	}
	return restored
}
