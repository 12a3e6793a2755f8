package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "barsim",
	Short: "Bar-replay backtester for single-instrument strategies",
	Long: `Barsim replays OHLCV bars through a trading strategy and reports how it
would have performed.

It provides tools for:
  - Running backtests from a YAML or JSON config file
  - Converting bar files between CSV and Parquet
  - Querying runs and trades recorded in a SQLite journal

Complete documentation is available at https://github.com/rustyeddy/barsim`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
