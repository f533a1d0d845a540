package domain

import (
	"fmt"
	"strings"
)

// CellID identifies a single addressable UI property.
// It encodes to JSON as its "component.property" string form.
type CellID struct {
	Component string
	Property  string
}

// Cell is a shorthand constructor for CellID.
func Cell(component, property string) CellID {
	return CellID{Component: component, Property: property}
}

// String returns the canonical "component.property" form.
func (c CellID) String() string {
	return c.Component + "." + c.Property
}

// IsZero reports whether the id is empty.
func (c CellID) IsZero() bool {
	return c.Component == "" && c.Property == ""
}

// ParseCellID parses the "component.property" form.
// The property is everything after the last dot, so component ids may contain dots.
func ParseCellID(s string) (CellID, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return CellID{}, fmt.Errorf("invalid cell id %q: expected component.property", s)
	}
	return CellID{Component: s[:i], Property: s[i+1:]}, nil
}

// MustParseCellID is like ParseCellID but panics on error.
// Intended for static declarations.
func MustParseCellID(s string) CellID {
	id, err := ParseCellID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseCellIDs parses a list of ids, stopping at the first error.
func ParseCellIDs(items []string) ([]CellID, error) {
	ids := make([]CellID, 0, len(items))
	for _, s := range items {
		id, err := ParseCellID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MustParseCellIDs parses a list of ids and panics on the first error.
func MustParseCellIDs(items ...string) []CellID {
	ids, err := ParseCellIDs(items)
	if err != nil {
		panic(err)
	}
	return ids
}

// MarshalText allows CellID to be used as a JSON map key.
func (c CellID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the "component.property" form.
func (c *CellID) UnmarshalText(b []byte) error {
	id, err := ParseCellID(string(b))
	if err != nil {
		return err
	}
	*c = id
	return nil
}
