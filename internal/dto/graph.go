package dto

import (
	"sort"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
)

// HandlerInfo is the wire form of a registered handler, without its function.
// It uses "mapstructure" tags so the same keys decode from definition files.
type HandlerInfo struct {
	ID                 string        `json:"id" mapstructure:"id"`
	Inputs             []string      `json:"inputs" mapstructure:"inputs"`
	State              []string      `json:"state,omitempty" mapstructure:"state"`
	Outputs            []string      `json:"outputs" mapstructure:"outputs"`
	Async              bool          `json:"async,omitempty" mapstructure:"async"`
	Timeout            time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	PreventInitialCall bool          `json:"prevent_initial_call,omitempty" mapstructure:"prevent_initial_call"`
}

// Graph describes a dashboard for introspection clients.
type Graph struct {
	Name     string        `json:"name"`
	Inputs   []string      `json:"inputs"`
	Handlers []HandlerInfo `json:"handlers"`
}

// NewGraph builds the wire description of handlers in registration order.
// Inputs are the cells no handler writes.
func NewGraph(name string, handlers []domain.HandlerSpec, inputs []domain.CellID) Graph {
	g := Graph{Name: name, Inputs: cellStrings(inputs), Handlers: make([]HandlerInfo, len(handlers))}
	for i, h := range handlers {
		g.Handlers[i] = HandlerInfo{
			ID:                 string(h.ID),
			Inputs:             cellStrings(h.Inputs),
			State:              cellStrings(h.State),
			Outputs:            cellStrings(h.Outputs),
			Async:              h.Async,
			Timeout:            h.Timeout,
			PreventInitialCall: h.PreventInitialCall,
		}
	}
	return g
}

func cellStrings(ids []domain.CellID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// FromDefinition describes a definition without building an engine.
func FromDefinition(def domain.Definition) Graph {
	written := make(map[domain.CellID]bool)
	for _, h := range def.Handlers {
		for _, c := range h.Outputs {
			written[c] = true
		}
	}
	seen := make(map[domain.CellID]bool)
	var inputs []domain.CellID
	add := func(c domain.CellID) {
		if !written[c] && !seen[c] {
			seen[c] = true
			inputs = append(inputs, c)
		}
	}
	for c := range def.Cells {
		add(c)
	}
	for _, h := range def.Handlers {
		for _, c := range h.Inputs {
			add(c)
		}
		for _, c := range h.State {
			add(c)
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].String() < inputs[j].String() })
	return NewGraph(def.Name, def.Handlers, inputs)
}
