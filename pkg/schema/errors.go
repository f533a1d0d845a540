package schema

import (
	"errors"
	"fmt"

	"github.com/aretw0/mosaic/pkg/domain"
)

// ValidationError represents a single cell validation failure.
type ValidationError struct {
	Cell   domain.CellID
	Reason string // Human-readable reason for failure
	Value  domain.Value
}

func (e *ValidationError) Error() string {
	if e.Value.IsUnset() {
		return fmt.Sprintf("cell %s: %s", e.Cell, e.Reason)
	}
	return fmt.Sprintf("cell %s: %s (got %s)", e.Cell, e.Reason, e.Value)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
