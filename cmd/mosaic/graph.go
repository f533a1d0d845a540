package main

import (
	"fmt"

	"github.com/aretw0/mosaic"
	"github.com/aretw0/mosaic/internal/dto"
	"github.com/aretw0/mosaic/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the handler graph visualization",
	Long: `Outputs a Mermaid diagram (graph LR) of input cells, handlers and the cells they write.
With --initial, the initial pass is run and its executed handlers and changed
cells are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		initial, _ := cmd.Flags().GetBool("initial")

		def, err := loadDefinition(cmd)
		if err != nil {
			return err
		}
		g := dto.FromDefinition(def)

		var overlay *graph.PassOverlay
		if initial {
			engine, err := mosaic.New(def)
			if err != nil {
				return err
			}
			defer engine.Close()
			report, err := engine.Start(cmd.Context())
			if err != nil {
				return err
			}
			overlay = &graph.PassOverlay{}
			for _, id := range report.Executed {
				overlay.Executed = append(overlay.Executed, string(id))
			}
			for _, id := range report.Failed {
				overlay.Failed = append(overlay.Failed, string(id))
			}
			for _, c := range report.Changed {
				overlay.Changed = append(overlay.Changed, c.String())
			}
		}

		// Generate and print Mermaid graph
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("initial", false, "Highlight the outcome of the initial pass")
}
