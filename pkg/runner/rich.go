package runner

import (
	"context"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Dispatcher is the session surface rich clients drive.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, ev domain.Event) (*domain.PassReport, error)
	Snapshot(ctx context.Context, sessionID string) (*domain.Snapshot, error)
}

// RichResponse combines the pass report and the resulting snapshot for rich clients (Web, MCP, etc).
type RichResponse struct {
	Report   *domain.PassReport `json:"report"`
	Snapshot *domain.Snapshot   `json:"snapshot"`
}

// DispatchAndSnapshot sanitizes and dispatches an event, then reads the
// session's snapshot so that clients always receive the state they just produced.
func DispatchAndSnapshot(ctx context.Context, d Dispatcher, sessionID string, ev domain.Event) (*RichResponse, error) {
	clean, err := SanitizeEvent(ev)
	if err != nil {
		return nil, err
	}
	report, err := d.Dispatch(ctx, sessionID, clean)
	if err != nil {
		return nil, err
	}

	snap, err := d.Snapshot(ctx, sessionID)
	if err != nil {
		// The pass committed; return the report to let the adapter decide how to log/handle it.
		return &RichResponse{Report: report}, err
	}
	return &RichResponse{Report: report, Snapshot: snap}, nil
}
