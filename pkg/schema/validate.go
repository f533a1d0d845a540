package schema

import (
	"sort"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Schema maps input cells to their expected types.
type Schema map[domain.CellID]Type

// ValidateEvent checks every change of an event against the schema.
// Cells without a type are not checked. Returns all failures found.
func ValidateEvent(schema Schema, ev domain.Event) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error
	for _, c := range ev.Changes {
		typ, ok := schema[c.Cell]
		if !ok {
			continue
		}
		if err := typ.Validate(c.Value); err != nil {
			errs = append(errs, &ValidationError{Cell: c.Cell, Reason: err.Error(), Value: c.Value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateDefinition checks that every typed cell is an initial cell of def
// and that its initial value (when set) conforms.
func ValidateDefinition(schema Schema, def domain.Definition) error {
	ids := make([]domain.CellID, 0, len(schema))
	for id := range schema {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var errs []error
	for _, id := range ids {
		v, ok := def.Cells[id]
		if !ok {
			errs = append(errs, &ValidationError{Cell: id, Reason: "not an initial cell"})
			continue
		}
		if v.IsUnset() {
			continue
		}
		if err := schema[id].Validate(v); err != nil {
			errs = append(errs, &ValidationError{Cell: id, Reason: err.Error(), Value: v})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
