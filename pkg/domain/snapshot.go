package domain

import "sort"

// CellStatus tells the renderer whether a cell's value is current.
type CellStatus string

const (
	StatusOK      CellStatus = "ok"
	StatusPending CellStatus = "pending" // An async handler is computing a new value.
	StatusError   CellStatus = "error"   // Last computation failed; Value is the last known good.
)

// CellState is one cell as seen by the rendering boundary.
type CellState struct {
	Value   Value      `json:"value"`
	Version uint64     `json:"version"`
	Status  CellStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
}

// Snapshot maps every cell to its current state.
type Snapshot struct {
	// Seq increases by one for every published snapshot of the same engine.
	Seq   uint64               `json:"seq"`
	Cells map[CellID]CellState `json:"cells"`
}

// Get returns the state of one cell.
func (s *Snapshot) Get(id CellID) (CellState, bool) {
	if s == nil {
		return CellState{}, false
	}
	c, ok := s.Cells[id]
	return c, ok
}

// Value returns the value of one cell, Unset when absent.
func (s *Snapshot) Value(id CellID) Value {
	c, _ := s.Get(id)
	return c.Value
}

// IDs returns the cell ids in stable (string) order.
func (s *Snapshot) IDs() []CellID {
	ids := make([]CellID, 0, len(s.Cells))
	for id := range s.Cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Seq: s.Seq, Cells: make(map[CellID]CellState, len(s.Cells))}
	for id, c := range s.Cells {
		c.Value = c.Value.Clone()
		out.Cells[id] = c
	}
	return out
}
