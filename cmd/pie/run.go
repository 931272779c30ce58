package main

import (
	"os"

	"github.com/aretw0/pie"
	"github.com/aretw0/pie/internal/cli"
	"github.com/aretw0/pie/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a program over a partitioned graph",
	Long:  `Loads the graph, runs one query of the selected program on every fragment and prints the published values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := cli.NewEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if !jsonMode {
			tui.PrintBanner(os.Stdout, pie.Version)
		}
		report, err := cli.Execute(cmd.Context(), env)
		if err != nil {
			return err
		}
		return cli.Print(os.Stdout, report, cli.RunOptions{JSON: jsonMode, Limit: limit})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("json", false, "Print the published views as JSON")
	runCmd.Flags().Int("limit", 50, "Maximum vertex rows in the report (0: all)")
}
