package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	Seq uint64 `json:"seq"`
	// Changed contains only cells whose version or status moved.
	Changed map[CellID]CellState `json:"changed"`
}

// Empty reports whether the diff carries no change.
func (d *SnapshotDiff) Empty() bool {
	return d == nil || len(d.Changed) == 0
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}
	diff := &SnapshotDiff{Seq: newSnap.Seq, Changed: make(map[CellID]CellState)}
	for id, cur := range newSnap.Cells {
		if oldSnap == nil {
			diff.Changed[id] = cur
			continue
		}
		prev, ok := oldSnap.Cells[id]
		if !ok || prev.Version != cur.Version || prev.Status != cur.Status || prev.Error != cur.Error {
			diff.Changed[id] = cur
		}
	}
	if len(diff.Changed) == 0 {
		return nil
	}
	return diff
}

// Apply merges a diff into a snapshot, returning a new snapshot.
func (s *Snapshot) Apply(d *SnapshotDiff) *Snapshot {
	out := s.Clone()
	if out == nil {
		out = &Snapshot{Cells: make(map[CellID]CellState)}
	}
	if d == nil {
		return out
	}
	for id, c := range d.Changed {
		out.Cells[id] = c
	}
	out.Seq = d.Seq
	return out
}
