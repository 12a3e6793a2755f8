package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the barsim CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "barsim version %s\n", version)
		fmt.Fprintln(w, "Bar-replay backtester for single-instrument strategies")
		fmt.Fprintln(w, "https://github.com/rustyeddy/barsim")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
