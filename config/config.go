package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/barsim/backtest"
)

// Config is the complete configuration of a backtest run.
type Config struct {
	Engine   backtest.Config `json:"engine" yaml:"engine"`
	Data     DataConfig      `json:"data" yaml:"data"`
	Strategy StrategyConfig  `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
	Log      LogConfig       `json:"log" yaml:"log"`
}

// DataConfig points at the bar file.
type DataConfig struct {
	Path         string `json:"path" yaml:"path" validate:"required" jsonschema:"required"`
	Format       string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=csv parquet" jsonschema:"enum=csv,enum=parquet"`
	Symbol       string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	ExtraColumns bool   `json:"extra_columns,omitempty" yaml:"extra_columns,omitempty"`
}

// StrategyConfig names a registered strategy and its parameters.
type StrategyConfig struct {
	Name   string         `json:"name" yaml:"name" validate:"required" jsonschema:"required"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" validate:"oneof=none csv sqlite" jsonschema:"enum=none,enum=csv,enum=sqlite"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	SkipEquity bool   `json:"skip_equity,omitempty" yaml:"skip_equity,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// LoadFromFile loads configuration from a file, YAML first with JSON as a
// fallback. Missing fields keep their Default values, except strategy
// params, which belong to the named strategy.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Strategy.Params = nil

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		cfg.Strategy.Params = nil
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field rules and the combinations the tags cannot express.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	}
	return nil
}

// DataFormat returns the configured format, or guesses it from the file
// extension.
func (c *Config) DataFormat() string {
	if c.Data.Format != "" {
		return c.Data.Format
	}
	if strings.EqualFold(filepath.Ext(c.Data.Path), ".parquet") {
		return "parquet"
	}
	return "csv"
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Engine: backtest.DefaultConfig(),
		Data: DataConfig{
			Path:   "./data/bars.csv",
			Format: "csv",
		},
		Strategy: StrategyConfig{
			Name: "sma-cross",
			Params: map[string]any{
				"fast": 10,
				"slow": 30,
			},
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.Title = "barsim-config"
	schema.Description = "Configuration schema for barsim run"
	return json.MarshalIndent(schema, "", "  ")
}
