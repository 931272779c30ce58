package main

import (
	"fmt"

	"github.com/aretw0/pie/internal/cli"
	"github.com/aretw0/pie/internal/presentation/graph"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the partitioned graph as a Mermaid diagram",
	Long: `Partitions the configured graph and prints a Mermaid flowchart with one subgraph
per fragment. With --values the configured program runs first and its results
annotate the vertices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		frags, err := cli.LoadGraph(cfg)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if withValues, _ := cmd.Flags().GetBool("values"); withValues {
			env, err := cli.NewEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer env.Close()
			report, err := cli.Execute(cmd.Context(), env)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{Values: make(map[domain.VertexID]any)}
			for _, v := range report.Views {
				for id, val := range v.Values {
					overlay.Values[id] = val
				}
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(frags, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("values", false, "Run the configured program and show its values")
}
