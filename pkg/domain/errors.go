package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCell is returned when an event or lookup targets an undeclared cell.
var ErrUnknownCell = errors.New("unknown cell")

// ErrNotInputCell is returned when an external event targets a handler-owned cell.
var ErrNotInputCell = errors.New("cell is written by a handler and cannot be set externally")

// ErrOutputArity is returned when a handler returns the wrong number of values.
var ErrOutputArity = errors.New("handler returned wrong number of outputs")

// ErrStaleResult marks a result discarded because its inputs moved on.
// It is never user visible.
var ErrStaleResult = errors.New("stale result discarded")

// ErrInterrupted marks a restored cell whose async computation never finished.
var ErrInterrupted = errors.New("computation interrupted")

// ErrEngineClosed is returned by operations on a closed engine.
var ErrEngineClosed = errors.New("engine closed")

// ErrSnapshotNotFound is returned when a snapshot id cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// DuplicateOutputError is returned when two handlers claim the same output cell.
type DuplicateOutputError struct {
	Cell     CellID
	Owner    HandlerID
	Claimant HandlerID
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("duplicate output %s: already written by %s, claimed by %s", e.Cell, e.Owner, e.Claimant)
}

// CyclicDependencyError is returned when a registration would close a cycle.
// Path alternates handler and cell names and ends where it started.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Path, " -> ")
}

// HandlerExecutionError wraps a failure raised by a handler at run time.
type HandlerExecutionError struct {
	Handler HandlerID
	Err     error
	// Panic holds the recovered value when the handler panicked.
	Panic any
}

func (e *HandlerExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Panic)
	}
	return fmt.Sprintf("handler %s failed: %v", e.Handler, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }

// InsufficientDataError is a domain-level "nothing to compute on" condition.
// Handlers surface it as a NoData placeholder rather than a failure.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason == "" {
		return "insufficient data"
	}
	return "insufficient data: " + e.Reason
}

// IsInsufficientData reports whether err wraps an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
