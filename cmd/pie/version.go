package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/pie"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pie",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pie version %s\n", strings.TrimSpace(pie.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
