package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/internal/logging"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource exposing the dashboard graph.
const GraphURI = "mosaic://graph"

// Sessions defines the session surface required by the MCP server.
type Sessions interface {
	runner.Dispatcher
	List(ctx context.Context) ([]string, error)
}

// SetInputsArgs are the arguments of the set_inputs tool.
type SetInputsArgs struct {
	SessionID string         `json:"session_id"`
	Changes   map[string]any `json:"changes"`
}

// SnapshotArgs are the arguments of the get_snapshot tool.
type SnapshotArgs struct {
	SessionID string `json:"session_id"`
	// Cells optionally restricts the snapshot, comma separated.
	Cells string `json:"cells,omitempty"`
}

// Server wraps dashboard sessions and exposes them as an MCP Server.
type Server struct {
	sessions  Sessions
	graph     dto.Graph
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for rejected calls.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, graph dto.Graph, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		graph:     graph,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("mosaic-mcp", strings.TrimSpace(mosaic.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		// Create a timeout context for the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: set_inputs
	setTool := mcp.NewTool("set_inputs",
		mcp.WithDescription("Set dashboard input cells of a session and run one propagation pass. Returns the pass report and the resulting snapshot."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Dashboard session; created on first use")),
		mcp.WithObject("changes", mcp.Required(), mcp.Description(`Input cells mapped to values, e.g. {"year_dropdown.value": "2015"}`)),
	)
	s.mcpServer.AddTool(setTool, mcp.NewStructuredToolHandler(s.handleSetInputs))

	// TOOL: get_snapshot
	snapshotTool := mcp.NewTool("get_snapshot",
		mcp.WithDescription("Get the current value, version and status of every cell of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Dashboard session")),
		mcp.WithString("cells", mcp.Description("Comma separated cell ids to include (optional)")),
	)
	s.mcpServer.AddTool(snapshotTool, mcp.NewStructuredToolHandler(s.handleGetSnapshot))

	// TOOL: list_sessions
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the stored dashboard sessions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the dashboard's handlers and input cells for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.graph)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleSetInputs(ctx context.Context, request mcp.CallToolRequest, args SetInputsArgs) (runner.RichResponse, error) {
	if args.SessionID == "" {
		return runner.RichResponse{}, fmt.Errorf("session_id is required")
	}
	ev, err := dto.EventRequest{Changes: args.Changes}.Event()
	if err != nil {
		return runner.RichResponse{}, fmt.Errorf("invalid changes: %w", err)
	}

	rich, err := runner.DispatchAndSnapshot(ctx, s.sessions, args.SessionID, ev)
	if err != nil && (rich == nil || rich.Report == nil) {
		s.logger.Warn("MCP set_inputs: Event rejected", "session_id", args.SessionID, "err", err)
		return runner.RichResponse{}, fmt.Errorf("set_inputs failed: %w", err)
	}
	if err != nil {
		s.logger.Error("MCP set_inputs: Snapshot failed", "session_id", args.SessionID, "err", err)
	}
	return *rich, nil
}

func (s *Server) handleGetSnapshot(ctx context.Context, request mcp.CallToolRequest, args SnapshotArgs) (*domain.Snapshot, error) {
	if args.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	snap, err := s.sessions.Snapshot(ctx, args.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get_snapshot failed: %w", err)
	}
	if args.Cells == "" {
		return snap, nil
	}

	out := &domain.Snapshot{Seq: snap.Seq, Cells: make(map[domain.CellID]domain.CellState)}
	for _, field := range strings.Split(args.Cells, ",") {
		id, err := domain.ParseCellID(field)
		if err != nil {
			return nil, err
		}
		if c, ok := snap.Get(id); ok {
			out.Cells[id] = c
		}
	}
	return out, nil
}

func (s *Server) registerResources() {
	// EXPOSE: mosaic://graph
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Dashboard Graph",
		mcp.WithMIMEType("application/json"),
	), s.readGraph)
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.graph)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
