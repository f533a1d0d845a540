package domain

import "fmt"

// Definition is a complete dashboard graph: initial cell values plus handlers.
type Definition struct {
	Name string
	// Cells holds initial values. Cells only referenced by handlers default to Unset.
	Cells    map[CellID]Value
	Handlers []HandlerSpec
}

// Validate checks every handler spec in isolation.
func (d Definition) Validate() error {
	for _, h := range d.Handlers {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	for id, v := range d.Cells {
		if v.IsNoUpdate() {
			return fmt.Errorf("cell %s: no_update is not an initial value", id)
		}
	}
	return nil
}
