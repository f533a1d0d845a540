package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/dto"
	httpAdapter "github.com/aretw0/mosaic/pkg/adapters/http"
	"github.com/aretw0/mosaic/pkg/observability"
	"github.com/aretw0/mosaic/pkg/runner"
	"github.com/aretw0/mosaic/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/SSE dashboard server",
	Long: `Serves one dashboard engine per session over HTTP. Events are posted as JSON,
snapshots are fetched or streamed as Server-Sent Events, metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		workers, _ := cmd.Flags().GetInt("workers")

		logger, closeLog, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		def, inputSchema, err := loadDashboard(cmd)
		if err != nil {
			return err
		}
		// Fail fast on an invalid graph instead of on the first session.
		probe, err := mosaic.New(def)
		if err != nil {
			return err
		}
		_ = probe.Close()

		h, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer h.close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg, "")
		if err != nil {
			return err
		}

		opts := []session.Option{
			session.WithLogger(logger),
			session.WithEngineOptions(
				mosaic.WithWorkers(workers),
				mosaic.WithLifecycleHooks(metrics.Hooks()),
				mosaic.WithLifecycleHooks(observability.LoggingHooks(logger)),
			),
		}
		if h.locker != nil {
			opts = append(opts, session.WithLocker(h.locker))
		}
		opts = append(opts, session.WithEventFilter(session.EventFilter(runner.SchemaMiddleware(inputSchema))))
		manager := session.NewManager(def, h.store, opts...)
		defer manager.Close()

		handler := httpAdapter.NewHandler(manager, dto.FromDefinition(def),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(reg),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// SSE streams end with the request context.
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting Mosaic Server", "address", srv.Addr, "dashboard", def.Name)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown...")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
			logger.Info("Mosaic Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Int("workers", 1, "Goroutines running independent handlers of a pass")
	addStoreFlags(serveCmd, "memory")
}
