package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/pkg/domain"
)

// Message types written by the JSONHandler.
const (
	MessageDiff   = "diff"
	MessageReport = "report"
	MessageSystem = "system"
)

// Message is one line of JSONHandler output.
type Message struct {
	Type    string               `json:"type"`
	Diff    *domain.SnapshotDiff `json:"diff,omitempty"`
	Report  *domain.PassReport   `json:"report,omitempty"`
	Message string               `json:"message,omitempty"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Each input line is either {"changes": {"cell": value}} or the changes object itself.
type JSONHandler struct {
	Writer  io.Writer
	Encoder *json.Encoder

	mu    sync.Mutex // Async results are published from worker goroutines
	lines *linePump
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Writer:  w,
		Encoder: json.NewEncoder(w),
		lines:   newLinePump(r),
	}
}

func (h *JSONHandler) Input(ctx context.Context) (domain.Event, error) {
	line, err := h.lines.next(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return domain.Event{}, &InputError{Line: line, Err: err}
	}
	req := dto.EventRequest{Changes: raw}
	if changes, ok := raw["changes"].(map[string]any); ok && len(raw) == 1 {
		req.Changes = changes
	}
	ev, err := req.Event()
	if err != nil {
		return domain.Event{}, &InputError{Line: line, Err: err}
	}
	return ev, nil
}

func (h *JSONHandler) Output(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error {
	if diff.Empty() {
		return nil
	}
	return h.write(Message{Type: MessageDiff, Diff: diff})
}

func (h *JSONHandler) Report(ctx context.Context, report *domain.PassReport) error {
	return h.write(Message{Type: MessageReport, Report: report})
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.write(Message{Type: MessageSystem, Message: msg})
}

func (h *JSONHandler) write(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(m)
}
