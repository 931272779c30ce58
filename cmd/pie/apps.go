package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/pie/pkg/apps"
	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the built-in programs",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
		for _, e := range apps.List() {
			params := e.Params
			if params == "" {
				params = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, params, e.Description)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)
}
