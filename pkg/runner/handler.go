package runner

import (
	"context"
	"fmt"

	"github.com/aretw0/mosaic/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Input reads the next external event. io.EOF ends the run.
	// Malformed input is reported as an *InputError so the runner can keep reading.
	Input(ctx context.Context) (domain.Event, error)

	// Output presents a published snapshot and the cells that moved in it.
	Output(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error

	// Report presents the outcome of one propagation pass.
	Report(ctx context.Context, report *domain.PassReport) error

	// SystemOutput presents a meta-message to the user (e.g. rejected events, status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// InputError is a line the handler could not turn into an event.
type InputError struct {
	Line string
	Err  error
}

func (e *InputError) Error() string {
	line := e.Line
	if len(line) > 40 {
		line = line[:40] + "..."
	}
	return fmt.Sprintf("invalid input %q: %v", line, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
