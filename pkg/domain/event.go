package domain

// Change sets one input cell to a new value.
type Change struct {
	Cell  CellID `json:"cell"`
	Value Value  `json:"value"`
}

// Event is an external mutation of one or more input cells.
// All changes of one event are collected into a single propagation pass.
type Event struct {
	Changes []Change `json:"changes"`
}

// Set is a shorthand for building a Change.
func Set(cell CellID, v Value) Change {
	return Change{Cell: cell, Value: v}
}

// NewEvent groups changes into an event.
func NewEvent(changes ...Change) Event {
	return Event{Changes: changes}
}

// Cells returns the targeted cells in order.
func (e Event) Cells() []CellID {
	out := make([]CellID, len(e.Changes))
	for i, c := range e.Changes {
		out[i] = c.Cell
	}
	return out
}

// PassReport describes what one propagation pass did.
type PassReport struct {
	PassID     string      `json:"pass_id"`
	Changed    []CellID    `json:"changed"`
	Executed   []HandlerID `json:"executed"`
	Suppressed []HandlerID `json:"suppressed,omitempty"`
	Failed     []HandlerID `json:"failed,omitempty"`
	Deferred   []HandlerID `json:"deferred,omitempty"`
	Stale      []HandlerID `json:"stale,omitempty"`
}
