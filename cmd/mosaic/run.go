package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/presentation/tui"
	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/observability"
	"github.com/aretw0/mosaic/pkg/runner"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dashboard interactively",
	Long: `Starts the dashboard engine and reads events from stdin.

Text mode reads one assignment per line, e.g. "year_dropdown.value = 2015".
JSON mode reads {"changes": {...}} objects and writes NDJSON diffs and reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		plain, _ := cmd.Flags().GetBool("plain")
		workers, _ := cmd.Flags().GetInt("workers")
		sessionID, _ := cmd.Flags().GetString("session")

		logger, closeLog, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		def, inputSchema, err := loadDashboard(cmd)
		if err != nil {
			return err
		}

		opts := []mosaic.Option{
			mosaic.WithLogger(logger),
			mosaic.WithWorkers(workers),
			mosaic.WithLifecycleHooks(observability.LoggingHooks(logger)),
		}
		if sessionID != "" {
			h, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer h.close()
			opts = append(opts, mosaic.WithSnapshotStore(h.store, sessionID))
		}

		engine, err := mosaic.New(def, opts...)
		if err != nil {
			return err
		}
		defer engine.Close()

		var handler runner.IOHandler
		switch {
		case jsonMode:
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		case plain || !tui.IsTerminal(os.Stdout):
			handler = runner.NewTextHandler(os.Stdin, os.Stdout, runner.WithTextHandlerRenderer(tui.NewRenderer()))
		default:
			tui.PrintBanner(os.Stdout)
			handler = &styledHandler{
				TextHandler: runner.NewTextHandler(os.Stdin, os.Stdout),
				status:      tui.NewStatusRenderer(os.Stdout, tui.WithMarkdown(tui.NewRenderer())),
			}
		}

		r := runner.NewRunner(
			runner.WithEngine(engine),
			runner.WithInputHandler(handler),
			runner.WithLogger(logger),
			runner.WithInterceptor(runner.MultiInterceptor(
				runner.SanitizeMiddleware(),
				runner.SchemaMiddleware(inputSchema),
			)),
		)
		if err := r.Run(cmd.Context()); err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

// styledHandler reads like a TextHandler but prints diffs through the
// terminal status renderer.
type styledHandler struct {
	*runner.TextHandler
	status *tui.StatusRenderer
}

func (h *styledHandler) Output(ctx context.Context, snap *domain.Snapshot, diff *domain.SnapshotDiff) error {
	return h.status.Render(ctx, snap, diff)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	runCmd.Flags().Bool("plain", false, "Disable the coloured terminal renderer")
	runCmd.Flags().Int("workers", 1, "Goroutines running independent handlers of a pass")
	runCmd.Flags().String("session", "", "Persist the dashboard under this session ID and resume it on restart")
	addStoreFlags(runCmd, "bolt")
}
