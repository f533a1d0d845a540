package dsl

import (
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	name     string
	cells    map[domain.CellID]domain.Value
	handlers []*HandlerBuilder
	byID     map[domain.HandlerID]*HandlerBuilder
	errs     []error
}

// New creates a new graph builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		cells: make(map[domain.CellID]domain.Value),
		byID:  make(map[domain.HandlerID]*HandlerBuilder),
	}
}

// Cell declares a cell with an initial value, e.g. Cell("year_dropdown.value", domain.Int(2010)).
func (b *Builder) Cell(id string, initial domain.Value) *Builder {
	cell, err := domain.ParseCellID(id)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.cells[cell] = initial
	return b
}

// Handler starts (or resumes) the declaration of a handler.
func (b *Builder) Handler(id string) *HandlerBuilder {
	hid := domain.HandlerID(id)
	if hb, ok := b.byID[hid]; ok {
		return hb
	}
	hb := &HandlerBuilder{spec: domain.HandlerSpec{ID: hid}, builder: b}
	b.byID[hid] = hb
	b.handlers = append(b.handlers, hb)
	return hb
}

// Build returns the definition. Handler order is declaration order.
func (b *Builder) Build() (domain.Definition, error) {
	if len(b.errs) > 0 {
		return domain.Definition{}, fmt.Errorf("failed to build definition: %w", errors.Join(b.errs...))
	}
	def := domain.Definition{
		Name:     b.name,
		Cells:    make(map[domain.CellID]domain.Value, len(b.cells)),
		Handlers: make([]domain.HandlerSpec, 0, len(b.handlers)),
	}
	for id, v := range b.cells {
		def.Cells[id] = v
	}
	for _, hb := range b.handlers {
		def.Handlers = append(def.Handlers, hb.spec)
	}
	if err := def.Validate(); err != nil {
		return domain.Definition{}, fmt.Errorf("failed to build definition: %w", err)
	}
	return def, nil
}

// HandlerBuilder provides a fluent API for configuring a handler.
type HandlerBuilder struct {
	spec    domain.HandlerSpec
	builder *Builder
}

func (h *HandlerBuilder) cells(ids []string) []domain.CellID {
	out := make([]domain.CellID, 0, len(ids))
	for _, s := range ids {
		id, err := domain.ParseCellID(s)
		if err != nil {
			h.builder.errs = append(h.builder.errs, fmt.Errorf("handler %s: %w", h.spec.ID, err))
			continue
		}
		out = append(out, id)
	}
	return out
}

// Inputs appends trigger cells.
func (h *HandlerBuilder) Inputs(ids ...string) *HandlerBuilder {
	h.spec.Inputs = append(h.spec.Inputs, h.cells(ids)...)
	return h
}

// State appends cells read without triggering.
func (h *HandlerBuilder) State(ids ...string) *HandlerBuilder {
	h.spec.State = append(h.spec.State, h.cells(ids)...)
	return h
}

// Outputs appends cells written by this handler.
func (h *HandlerBuilder) Outputs(ids ...string) *HandlerBuilder {
	h.spec.Outputs = append(h.spec.Outputs, h.cells(ids)...)
	return h
}

// Do sets the handler function.
func (h *HandlerBuilder) Do(fn domain.HandlerFunc) *HandlerBuilder {
	h.spec.Fn = fn
	return h
}

// Async runs the handler on a worker.
func (h *HandlerBuilder) Async() *HandlerBuilder {
	h.spec.Async = true
	return h
}

// Timeout bounds a single invocation.
func (h *HandlerBuilder) Timeout(d time.Duration) *HandlerBuilder {
	h.spec.Timeout = d
	return h
}

// PreventInitialCall skips the handler during the start-up pass.
func (h *HandlerBuilder) PreventInitialCall() *HandlerBuilder {
	h.spec.PreventInitialCall = true
	return h
}

// Handler ends this declaration and starts the next one.
func (h *HandlerBuilder) Handler(id string) *HandlerBuilder {
	return h.builder.Handler(id)
}

// Build is a shortcut for the parent builder's Build.
func (h *HandlerBuilder) Build() (domain.Definition, error) {
	return h.builder.Build()
}
