package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/mosaic/pkg/domain"
)

// ContentRenderer is a function that transforms markdown content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
// Input lines assign one input cell each:
//
//	year_dropdown.value = 2015
//	gini_country_dropdown.value = ["Brazil", "Chile"]
//	indicator_dropdown.value = Population, total
//
// The right-hand side is read as JSON when it parses, as plain text otherwise.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer
	// Prompt is written before every read. Empty disables it.
	Prompt string

	mu    sync.Mutex // Async results are published from worker goroutines
	lines *linePump
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithPrompt replaces the default "> " prompt.
func WithPrompt(prompt string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = prompt
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Writer: w,
		Prompt: "> ",
		lines:  newLinePump(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Input(ctx context.Context) (domain.Event, error) {
	// Only show prompt if context is not yet done
	if ctx.Err() == nil && h.Prompt != "" {
		h.mu.Lock()
		fmt.Fprint(h.Writer, h.Prompt)
		h.mu.Unlock()
	}
	line, err := h.lines.next(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	if line == "exit" || line == "quit" {
		return domain.Event{}, io.EOF
	}
	ev, err := ParseAssignment(line)
	if err != nil {
		return domain.Event{}, &InputError{Line: line, Err: err}
	}
	return ev, nil
}

func (h *TextHandler) Output(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error {
	if diff.Empty() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := &domain.Snapshot{Cells: diff.Changed}
	for _, id := range changed.IDs() {
		c := diff.Changed[id]
		switch {
		case c.Status == domain.StatusError:
			fmt.Fprintf(h.Writer, "%s [error] %s\n", id, c.Error)
		case c.Status == domain.StatusPending:
			fmt.Fprintf(h.Writer, "%s [pending]\n", id)
		case c.Value.Kind() == domain.KindMarkdown:
			text, _ := c.Value.AsText()
			if h.Renderer != nil {
				if rendered, err := h.Renderer(text); err == nil {
					text = rendered
				}
			}
			fmt.Fprintf(h.Writer, "%s:\n%s\n", id, strings.TrimSpace(text))
		default:
			fmt.Fprintf(h.Writer, "%s = %s\n", id, c.Value)
		}
	}
	return nil
}

func (h *TextHandler) Report(ctx context.Context, report *domain.PassReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(report.Failed) > 0 {
		fmt.Fprintf(h.Writer, "[System] failed: %s\n", joinIDs(report.Failed))
	}
	return nil
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return nil
}

// ParseAssignment turns a "cell = value" line into a single-change event.
func ParseAssignment(line string) (domain.Event, error) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return domain.Event{}, errors.New("expected cell = value")
	}
	cell, err := domain.ParseCellID(lhs)
	if err != nil {
		return domain.Event{}, err
	}
	v, err := parseValue(strings.TrimSpace(rhs))
	if err != nil {
		return domain.Event{}, err
	}
	return domain.NewEvent(domain.Set(cell, v)), nil
}

func parseValue(s string) (domain.Value, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return domain.Text(s), nil
	}
	return domain.FromAny(raw)
}

func joinIDs(ids []domain.HandlerID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
