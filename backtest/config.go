package backtest

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds the engine settings recognised for every run.
type Config struct {
	// StartingCash is the initial account equity.
	StartingCash float64 `json:"starting_cash" yaml:"starting_cash" validate:"gt=0"`

	// Commission is a per-notional fee charged on every fill (0.002 = 0.2%).
	Commission float64 `json:"commission" yaml:"commission" validate:"gte=0,lt=1"`

	// AllowShort rejects sell entries when false.
	AllowShort bool `json:"allow_short" yaml:"allow_short"`

	// BarsPerYear annualises Sharpe and Sortino. 35040 is 15-minute bars
	// around the clock.
	BarsPerYear float64 `json:"bars_per_year" yaml:"bars_per_year" validate:"gt=0"`

	// CloseAtEnd closes an open position at the last bar's close.
	CloseAtEnd bool `json:"close_at_end" yaml:"close_at_end"`
}

func DefaultConfig() Config {
	return Config{
		StartingCash: 1_000_000,
		Commission:   0,
		AllowShort:   true,
		BarsPerYear:  35040,
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("backtest: invalid config: %w", err)
	}
	return nil
}
