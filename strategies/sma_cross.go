package strategies

import (
	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/indicators"
)

// SMACrossConfig holds the sma-cross parameters.
type SMACrossConfig struct {
	Fast int `yaml:"fast" json:"fast" validate:"gt=0"`
	Slow int `yaml:"slow" json:"slow" validate:"gtfield=Fast"`

	// Fraction of cash committed per entry.
	Fraction float64 `yaml:"fraction" json:"fraction" validate:"gt=0,lte=1"`

	// Short reverses into a short on a cross down instead of going flat.
	Short bool `yaml:"short" json:"short"`
}

func SMACrossConfigDefaults() SMACrossConfig {
	return SMACrossConfig{Fast: 10, Slow: 30, Fraction: 0.95}
}

// SMACross goes long when the fast SMA crosses above the slow one and exits
// (or reverses, with Short) on the opposite cross.
type SMACross struct {
	SMACrossConfig `yaml:",inline"`

	fast, slow *backtest.Series
}

func NewSMACross() *SMACross {
	return &SMACross{SMACrossConfig: SMACrossConfigDefaults()}
}

func (*SMACross) Name() string { return "sma-cross" }

func (s *SMACross) Init(ctx *backtest.Context) error {
	closes := ctx.Data().Close.Values()

	var err error
	if s.fast, err = ctx.Register("sma_fast", indicators.Period(indicators.SMA, s.Fast), closes); err != nil {
		return err
	}
	s.slow, err = ctx.Register("sma_slow", indicators.Period(indicators.SMA, s.Slow), closes)
	return err
}

func (s *SMACross) Next(ctx *backtest.Context) error {
	pos := ctx.Position()

	switch {
	case backtest.Crossover(s.fast, s.slow):
		if pos.IsOpen() && pos.Side() == backtest.Long {
			return nil
		}
		if err := closeOpen(pos); err != nil {
			return err
		}
		_, err := ctx.Buy(backtest.OrderRequest{Size: s.size(ctx), Tag: "cross-up"})
		return ignoreRejected(err)

	case backtest.Crossunder(s.fast, s.slow):
		if pos.IsOpen() && pos.Side() == backtest.Short {
			return nil
		}
		if err := closeOpen(pos); err != nil {
			return err
		}
		if !s.Short {
			return nil
		}
		_, err := ctx.Sell(backtest.OrderRequest{Size: s.size(ctx), Tag: "cross-down"})
		return ignoreRejected(err)
	}
	return nil
}

// size is sized off equity so a reversal is not starved by the open
// position's collateral.
func (s *SMACross) size(ctx *backtest.Context) float64 {
	return affordableEquity(ctx, s.Fraction, ctx.Bar().Close)
}

func closeOpen(pos *backtest.Position) error {
	if !pos.IsOpen() {
		return nil
	}
	return ignoreRejected(pos.Close())
}
