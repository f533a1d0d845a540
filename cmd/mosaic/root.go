package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Mosaic is a reactive property graph engine for data dashboards",
	Long: `Mosaic binds dashboard components through handlers that recompute output
cells whenever their input cells change. Run the poverty dashboard from the
terminal, serve it over HTTP/SSE, or expose it to agents over MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("file", "f", "", "Dashboard definition file (YAML or JSON); the builtin poverty dashboard when empty")
	rootCmd.PersistentFlags().String("data", "data", "Directory containing poverty.csv, PovStatsData.csv and PovStatsSeries.csv")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
}
