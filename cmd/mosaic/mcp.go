package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/pkg/adapters/mcp"
	"github.com/aretw0/mosaic/pkg/runner"
	"github.com/aretw0/mosaic/pkg/session"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the dashboard as an MCP Server.
This allows AI agents (like Claude Desktop) to set dashboard inputs and read
the resulting figures as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Logs always go to Stderr so they never corrupt JSON-RPC on Stdout.
		logger, closeLog, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
		log.SetOutput(os.Stderr)

		def, inputSchema, err := loadDashboard(cmd)
		if err != nil {
			return err
		}
		h, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer h.close()

		opts := []session.Option{session.WithLogger(logger)}
		if h.locker != nil {
			opts = append(opts, session.WithLocker(h.locker))
		}
		opts = append(opts, session.WithEventFilter(session.EventFilter(runner.SchemaMiddleware(inputSchema))))
		manager := session.NewManager(def, h.store, opts...)
		defer manager.Close()

		srv := mcp.NewServer(manager, dto.FromDefinition(def), mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			logger.Info("Starting Mosaic MCP Server (Stdio)...")
			if err := srv.ServeStdio(); err != nil {
				return fmt.Errorf("MCP Server execution failed: %w", err)
			}
			return nil
		case "sse":
			logger.Info("Starting Mosaic MCP Server (SSE)", "port", port)

			// Create a context that cancels on interrupt signal
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP Server execution failed: %w", err)
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		}
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	addStoreFlags(mcpCmd, "memory")
}
