package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/muesli/termenv"
)

// StatusRenderer prints each published diff as a coloured cell list.
// It implements ports.Renderer.
type StatusRenderer struct {
	out      *termenv.Output
	markdown func(string) (string, error)
	profile  *termenv.Profile

	mu sync.Mutex
}

// StatusOption configures a StatusRenderer.
type StatusOption func(*StatusRenderer)

// WithProfile forces a colour profile, e.g. termenv.Ascii in tests.
func WithProfile(p termenv.Profile) StatusOption {
	return func(r *StatusRenderer) {
		r.profile = &p
	}
}

// WithMarkdown renders markdown cells through fn (see NewRenderer).
func WithMarkdown(fn func(string) (string, error)) StatusOption {
	return func(r *StatusRenderer) {
		r.markdown = fn
	}
}

// NewStatusRenderer writes to w, detecting its colour profile.
func NewStatusRenderer(w io.Writer, opts ...StatusOption) *StatusRenderer {
	r := &StatusRenderer{}
	for _, opt := range opts {
		opt(r)
	}
	if r.profile != nil {
		r.out = termenv.NewOutput(w, termenv.WithProfile(*r.profile))
	} else {
		r.out = termenv.NewOutput(w)
	}
	return r
}

func (r *StatusRenderer) Render(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error {
	if diff.Empty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(r.out.String(fmt.Sprintf("── pass %d ──", snap.Seq)).Faint().String())
	sb.WriteString("\n")

	changed := &domain.Snapshot{Cells: diff.Changed}
	for _, id := range changed.IDs() {
		c := diff.Changed[id]
		name := r.out.String(id.String()).Bold().String()
		switch c.Status {
		case domain.StatusError:
			tag := r.out.String("✗ " + c.Error).Foreground(r.out.Color("#fb7185"))
			fmt.Fprintf(&sb, "%s %s\n", name, tag)
		case domain.StatusPending:
			tag := r.out.String("… pending").Foreground(r.out.Color("#fbbf24"))
			fmt.Fprintf(&sb, "%s %s\n", name, tag)
		default:
			fmt.Fprintf(&sb, "%s %s\n", name, r.value(c.Value))
		}
	}
	_, err := io.WriteString(r.out, sb.String())
	return err
}

func (r *StatusRenderer) value(v domain.Value) string {
	switch v.Kind() {
	case domain.KindMarkdown:
		text, _ := v.AsText()
		if r.markdown != nil {
			if rendered, err := r.markdown(text); err == nil {
				text = rendered
			}
		}
		return "\n" + strings.TrimSpace(text)
	case domain.KindNoData:
		return r.out.String(v.String()).Faint().String()
	case domain.KindFigure:
		f, _ := v.AsFigure()
		return r.out.String(figureSummary(f)).Foreground(r.out.Color("#818cf8")).String()
	}
	return "= " + v.String()
}

func figureSummary(f domain.Figure) string {
	points := 0
	for _, t := range f.Traces {
		points += len(t.Values)
	}
	title := f.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("▦ %s %q (%d traces, %d points)", f.Type, title, len(f.Traces), points)
}
