package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/runner"
	"github.com/aretw0/mosaic/pkg/schema"
	"github.com/aretw0/mosaic/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sessions is the session surface the HTTP adapter serves.
// *session.Manager implements it.
type Sessions interface {
	runner.Dispatcher
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
	Subscribe(ctx context.Context, sessionID string, fn mosaic.Listener) (func(), error)
}

// Server exposes dashboard sessions over JSON and Server-Sent Events.
type Server struct {
	Sessions Sessions
	Graph    dto.Graph
	Streams  *StreamManager

	metrics http.Handler
	logger  *slog.Logger

	attachMu sync.Mutex
	attached map[string]func() // SessionID -> engine listener removal
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves the gatherer's metrics on /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
}

// NewHandler creates a new HTTP handler for the sessions of one dashboard.
func NewHandler(sessions Sessions, graph dto.Graph, opts ...Option) http.Handler {
	server := &Server{
		Sessions: sessions,
		Graph:    graph,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		attached: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/graph", server.GetGraph)
	if server.metrics != nil {
		r.Handle("/metrics", server.metrics)
	}

	r.Get("/sessions", server.ListSessions)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/events", server.PostEvent)
		r.Get("/snapshot", server.GetSnapshot)
		r.Get("/stream", server.Stream)
		r.Delete("/", server.DeleteSession)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostEvent handles the POST /sessions/{id}/events request.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var body dto.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostEvent: Invalid request body", "err", err)
		return
	}
	ev, err := body.Event()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid event: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := runner.DispatchAndSnapshot(r.Context(), s.Sessions, sessionID, ev)
	if err != nil && (resp == nil || resp.Report == nil) {
		s.fail(w, "Dispatch", sessionID, err)
		return
	}
	if err != nil {
		s.logger.Error("PostEvent: Snapshot failed", "session_id", sessionID, "err", err)
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

// GetSnapshot handles the GET /sessions/{id}/snapshot request.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	snap, err := s.Sessions.Snapshot(r.Context(), sessionID)
	if err != nil {
		s.fail(w, "Snapshot", sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, snap, s.logger)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	s.unfollowAll(sessionID)
	if err := s.Sessions.Delete(r.Context(), sessionID); err != nil {
		s.fail(w, "Delete", sessionID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, "List", "", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids}, s.logger)
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Graph, s.logger)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":       "mosaic-http",
		"version":   strings.TrimSpace(mosaic.Version),
		"dashboard": s.Graph.Name,
	}, s.logger)
}

// Stream handles the GET /sessions/{id}/stream request (SSE).
// The first event is the full snapshot; every later one is a diff.
// The optional watch parameter keeps only the listed cells.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("Stream: Streaming not supported")
		return
	}
	sessionID := chi.URLParam(r, "id")

	watch, err := parseWatch(r.URL.Query().Get("watch"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ch, leave, err := s.follow(r.Context(), sessionID)
	if err != nil {
		s.fail(w, "Stream", sessionID, err)
		return
	}
	defer leave()

	snap, err := s.Sessions.Snapshot(r.Context(), sessionID)
	if err != nil {
		s.fail(w, "Stream", sessionID, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	writeEvent(w, "snapshot", filterSnapshot(snap, watch))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if diff = filterDiff(diff, watch); diff == nil {
				continue
			}
			writeEvent(w, "diff", diff)
			flusher.Flush()
		}
	}
}

// follow subscribes a stream to a session. The first stream of a session
// attaches a listener to its engine; the last one to leave detaches it.
func (s *Server) follow(ctx context.Context, sessionID string) (<-chan *domain.SnapshotDiff, func(), error) {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	ch, first, leave := s.Streams.Subscribe(sessionID)
	if first {
		detach, err := s.Sessions.Subscribe(ctx, sessionID, func(_ *domain.Snapshot, diff *domain.SnapshotDiff) {
			s.Streams.Broadcast(sessionID, diff)
		})
		if err != nil {
			leave()
			return nil, nil, err
		}
		s.attached[sessionID] = detach
	}

	return ch, func() {
		s.attachMu.Lock()
		defer s.attachMu.Unlock()
		if leave() {
			s.detach(sessionID)
		}
	}, nil
}

// unfollowAll ends every stream of a session.
func (s *Server) unfollowAll(sessionID string) {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	s.Streams.CloseSession(sessionID)
	s.detach(sessionID)
}

func (s *Server) detach(sessionID string) {
	if detach, ok := s.attached[sessionID]; ok {
		detach()
		delete(s.attached, sessionID)
	}
}

func (s *Server) fail(w http.ResponseWriter, op, sessionID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownCell), errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8),
		schema.ValidationErrors(err) != nil:
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotInputCell):
		status = http.StatusConflict
	case errors.Is(err, session.ErrManagerClosed), errors.Is(err, domain.ErrEngineClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "session_id", sessionID, "err", err)
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), status)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func parseWatch(raw string) (map[domain.CellID]bool, error) {
	if raw == "" {
		return nil, nil
	}
	watch := make(map[domain.CellID]bool)
	for _, field := range strings.Split(raw, ",") {
		id, err := domain.ParseCellID(field)
		if err != nil {
			return nil, fmt.Errorf("invalid watch list: %w", err)
		}
		watch[id] = true
	}
	return watch, nil
}

func filterDiff(diff *domain.SnapshotDiff, watch map[domain.CellID]bool) *domain.SnapshotDiff {
	if watch == nil || diff == nil {
		return diff
	}
	out := &domain.SnapshotDiff{Seq: diff.Seq, Changed: make(map[domain.CellID]domain.CellState)}
	for id, c := range diff.Changed {
		if watch[id] {
			out.Changed[id] = c
		}
	}
	if out.Empty() {
		return nil
	}
	return out
}

func filterSnapshot(snap *domain.Snapshot, watch map[domain.CellID]bool) *domain.Snapshot {
	if watch == nil {
		return snap
	}
	out := &domain.Snapshot{Seq: snap.Seq, Cells: make(map[domain.CellID]domain.CellState)}
	for id, c := range snap.Cells {
		if watch[id] {
			out.Cells[id] = c
		}
	}
	return out
}
