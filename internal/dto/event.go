package dto

import (
	"fmt"
	"sort"

	"github.com/aretw0/mosaic/pkg/domain"
)

// EventRequest is the loose wire form of an external event: cell ids mapped to
// plain JSON values (numbers, strings, bools, lists, or {"kind": ...} objects).
type EventRequest struct {
	Changes map[string]any `json:"changes"`
}

// Event converts the request into a domain event, ordered by cell id.
func (r EventRequest) Event() (domain.Event, error) {
	if len(r.Changes) == 0 {
		return domain.Event{}, fmt.Errorf("event has no changes")
	}
	keys := make([]string, 0, len(r.Changes))
	for k := range r.Changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev := domain.Event{Changes: make([]domain.Change, 0, len(keys))}
	for _, k := range keys {
		cell, err := domain.ParseCellID(k)
		if err != nil {
			return domain.Event{}, err
		}
		v, err := domain.FromAny(r.Changes[k])
		if err != nil {
			return domain.Event{}, fmt.Errorf("cell %s: %w", k, err)
		}
		ev.Changes = append(ev.Changes, domain.Set(cell, v))
	}
	return ev, nil
}
