package main

import (
	"fmt"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/dto"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the handler graph for consistency",
	Long:  `Registers every handler and reports duplicate outputs, dependency cycles and unknown handler functions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runValidate(cmd); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	def, inputSchema, err := loadDashboard(cmd)
	if err != nil {
		return err
	}

	// Registration is the validation: mosaic.New aborts on the first conflict.
	eng, err := mosaic.New(def)
	if err != nil {
		return err
	}
	defer eng.Close()

	g := dto.FromDefinition(def)
	async := 0
	for _, h := range g.Handlers {
		if h.Async {
			async++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d handlers (%d async), %d input cells\n", g.Name, len(g.Handlers), async, len(g.Inputs))
	if len(inputSchema) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d typed input cells\n", len(inputSchema))
	}
	return nil
}
