// Package strategies holds the strategies the CLI can run by name.
//
// Strategy parameters are the exported fields of each strategy struct. New
// decodes a parameter map onto a strategy's defaults, rejecting unknown
// keys, and validates the result.
package strategies

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/barsim/backtest"
)

// Factory returns a strategy with default parameters.
type Factory func() backtest.Strategy

var registry = map[string]Factory{
	"noop":          func() backtest.Strategy { return &Noop{} },
	"buy-hold":      func() backtest.Strategy { return NewBuyHold() },
	"sma-cross":     func() backtest.Strategy { return NewSMACross() },
	"ema-cross":     func() backtest.Strategy { return NewEMACross() },
	"breakout":      func() backtest.Strategy { return NewBreakout() },
	"rsi-reversion": func() backtest.Strategy { return NewRSIReversion() },
}

var aliases = map[string]string{
	"none":     "noop",
	"buyhold":  "buy-hold",
	"smacross": "sma-cross",
	"emacross": "ema-cross",
}

// Register adds or replaces a strategy factory.
func Register(name string, f Factory) {
	registry[name] = f
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds the named strategy and applies params.
func New(name string, params map[string]any) (backtest.Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[key]; ok {
		key = a
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}

	s := f()
	if err := Decode(params, s); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", key, err)
	}
	return s, nil
}

var validate = validator.New()

// Decode copies params onto out's exported fields through YAML and runs
// the validate tags.
func Decode(params map[string]any, out any) error {
	if len(params) > 0 {
		raw, err := yaml.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode params: %w", err)
		}
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// Params renders a strategy's parameters as YAML for the journal.
func Params(s backtest.Strategy) string {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

// affordable is the largest whole size whose notional plus commission fits
// in fraction of current cash at price.
func affordable(ctx *backtest.Context, fraction, price float64) float64 {
	if price <= 0 {
		return 0
	}
	per := price * (1 + ctx.Config().Commission)
	return math.Floor(ctx.Cash() * fraction / per)
}

// affordableEquity is affordable measured against equity, for entries that
// follow an exit on the same bar.
func affordableEquity(ctx *backtest.Context, fraction, price float64) float64 {
	if price <= 0 {
		return 0
	}
	per := price * (1 + ctx.Config().Commission)
	return math.Floor(ctx.Equity() * fraction / per)
}

// ignoreRejected drops order rejections: the engine already recorded them
// as warnings and the strategy carries on.
func ignoreRejected(err error) error {
	var rej *backtest.OrderRejectedError
	if errors.As(err, &rej) {
		return nil
	}
	return err
}

func someFloat(v float64) optional.Option[float64] { return optional.Some(v) }
