package ports

import (
	"context"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Renderer consumes published snapshots. Renderers are passive: they never
// write cells and never originate events.
type Renderer interface {
	// Render receives the full snapshot and its diff against the previous one.
	// diff is the whole snapshot on the first call.
	Render(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error {
	return f(ctx, snap, diff)
}
