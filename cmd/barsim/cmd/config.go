package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/config"
	"github.com/rustyeddy/barsim/strategies"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage backtest configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file
  schema   - Print the JSON schema of the file or of a strategy's params

Examples:
  barsim config init -o backtest.yaml
  barsim config validate -f backtest.yaml
  barsim config schema --strategy ema-cross`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings. The format
follows the extension: .yaml/.yml for YAML, anything else for JSON.

Example:
  barsim config init -o backtest.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check that a configuration file loads, passes validation and names a
known strategy with valid parameters.

Example:
  barsim config validate -f backtest.yaml`,
	RunE: runConfigValidate,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print a JSON schema",
	Long: `Print the JSON schema of the configuration file, or with --strategy the
schema of that strategy's params block.`,
	Args: cobra.NoArgs,
	RunE: runConfigSchema,
}

var (
	configInitOutput     string
	configValidatePath   string
	configSchemaStrategy string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSchemaCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "backtest.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
	configSchemaCmd.Flags().StringVarP(&configSchemaStrategy, "strategy", "s", "", "print the params schema of this strategy")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(w, "\nEdit the file and run with:")
	fmt.Fprintf(w, "  barsim run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if _, err := strategies.New(cfg.Strategy.Name, cfg.Strategy.Params); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(w, "  Data: %s (%s)\n", cfg.Data.Path, cfg.DataFormat())
	fmt.Fprintf(w, "  Strategy: %s\n", cfg.Strategy.Name)
	fmt.Fprintf(w, "  Cash: %.2f, Commission: %.4f%%\n", cfg.Engine.StartingCash, cfg.Engine.Commission*100)
	fmt.Fprintf(w, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if configSchemaStrategy != "" {
		raw, err = strategies.Schema(configSchemaStrategy)
	} else {
		raw, err = config.Schema()
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}
