package domain

import (
	"context"
	"fmt"
	"time"
)

// HandlerID uniquely identifies a registered handler.
type HandlerID string

// HandlerFunc computes a handler's outputs from its arguments.
// It must be idempotent: identical arguments yield identical results.
type HandlerFunc func(ctx context.Context, args Args) (Result, error)

// HandlerSpec declares a handler and the cells it binds.
type HandlerSpec struct {
	ID HandlerID

	// Inputs trigger recomputation and are passed first, in order.
	Inputs []CellID
	// State cells are passed after the inputs but never trigger.
	State []CellID
	// Outputs are the cells this handler is the sole writer of.
	Outputs []CellID

	Fn HandlerFunc

	// Async runs the handler on a worker without blocking the pass.
	Async bool
	// Timeout bounds a single invocation. Zero means no limit.
	Timeout time.Duration
	// PreventInitialCall skips the handler during the start-up pass.
	PreventInitialCall bool
}

// Validate checks a handler in isolation (graph-level rules live in the dependency graph).
func (s HandlerSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("handler id is required")
	}
	if s.Fn == nil {
		return fmt.Errorf("handler %s: function is required", s.ID)
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("handler %s: at least one input is required", s.ID)
	}
	if len(s.Outputs) == 0 {
		return fmt.Errorf("handler %s: at least one output is required", s.ID)
	}
	for name, list := range map[string][]CellID{"input": s.Inputs, "state": s.State, "output": s.Outputs} {
		seen := make(map[CellID]bool, len(list))
		for _, c := range list {
			if c.Component == "" || c.Property == "" {
				return fmt.Errorf("handler %s: invalid %s cell %q", s.ID, name, c)
			}
			if seen[c] {
				return fmt.Errorf("handler %s: %s cell %s declared twice", s.ID, name, c)
			}
			seen[c] = true
		}
	}
	if s.Timeout < 0 {
		return fmt.Errorf("handler %s: negative timeout", s.ID)
	}
	return nil
}

// Args are the values a handler receives: its inputs, then its state.
type Args struct {
	inputs []Value
	state  []Value

	// Triggered lists the inputs that changed in the current pass.
	// During the start-up pass it lists every input.
	Triggered []CellID
}

// NewArgs builds an Args value. Used by the scheduler and by tests calling handlers directly.
func NewArgs(inputs, state []Value, triggered ...CellID) Args {
	return Args{inputs: inputs, state: state, Triggered: triggered}
}

// Input returns the i-th input value, or Unset when out of range.
func (a Args) Input(i int) Value {
	if i < 0 || i >= len(a.inputs) {
		return Unset()
	}
	return a.inputs[i]
}

// State returns the i-th state value, or Unset when out of range.
func (a Args) State(i int) Value {
	if i < 0 || i >= len(a.state) {
		return Unset()
	}
	return a.state[i]
}

// Values returns inputs followed by state, in declared order.
func (a Args) Values() []Value {
	out := make([]Value, 0, len(a.inputs)+len(a.state))
	out = append(out, a.inputs...)
	return append(out, a.state...)
}

// Result is what a handler returns.
type Result struct {
	values     []Value
	suppressed bool
}

// Update returns one value per declared output, in order.
// Use NoUpdate() in a slot to leave that single output untouched.
func Update(values ...Value) Result {
	return Result{values: values}
}

// Suppress means "no update" for every output: dependents are not invoked.
func Suppress() Result {
	return Result{suppressed: true}
}

// Suppressed reports whether the whole result is a suppression.
func (r Result) Suppressed() bool { return r.suppressed }

// Values returns the output values.
func (r Result) Values() []Value { return r.values }
