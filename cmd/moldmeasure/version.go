package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mold-measure/internal/version"
	"mold-measure/internal/vision"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and available backends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "moldmeasure %s\n", version.String())
		fmt.Fprintf(cmd.OutOrStdout(), "backends: %v\n", vision.Names())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
