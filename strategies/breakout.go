package strategies

import (
	"math"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/indicators"
)

// BreakoutConfig holds the breakout parameters.
type BreakoutConfig struct {
	Lookback  int     `yaml:"lookback" json:"lookback" validate:"gt=1"`
	ATRPeriod int     `yaml:"atr_period" json:"atr_period" validate:"gt=0"`
	StopATR   float64 `yaml:"stop_atr" json:"stop_atr" validate:"gt=0"`
	TrailATR  float64 `yaml:"trail_atr" json:"trail_atr" validate:"gt=0"`
	RiskPct   float64 `yaml:"risk_pct" json:"risk_pct" validate:"gt=0,lte=0.1"`
	Short     bool    `yaml:"short" json:"short"`
}

func BreakoutConfigDefaults() BreakoutConfig {
	return BreakoutConfig{
		Lookback:  20,
		ATRPeriod: 14,
		StopATR:   2,
		TrailATR:  3,
		RiskPct:   0.01,
	}
}

// Breakout rests a stop order at the channel edge and trails the stop-loss
// once filled. The entry order is re-placed every bar to follow the channel.
type Breakout struct {
	BreakoutConfig `yaml:",inline"`

	high, low, atr *backtest.Series
}

func NewBreakout() *Breakout {
	return &Breakout{BreakoutConfig: BreakoutConfigDefaults()}
}

func (*Breakout) Name() string { return "breakout" }

func (s *Breakout) Init(ctx *backtest.Context) error {
	d := ctx.Data()
	highs, lows, closes := d.High.Values(), d.Low.Values(), d.Close.Values()

	var err error
	if s.high, err = ctx.Register("channel_high", indicators.Period(indicators.Highest, s.Lookback), highs); err != nil {
		return err
	}
	if s.low, err = ctx.Register("channel_low", indicators.Period(indicators.Lowest, s.Lookback), lows); err != nil {
		return err
	}
	s.atr, err = ctx.Register("atr", indicators.ATRFunc(s.ATRPeriod), highs, lows, closes)
	return err
}

func (s *Breakout) Next(ctx *backtest.Context) error {
	atr := s.atr.Last()
	if math.IsNaN(atr) || atr <= 0 {
		return nil
	}

	pos := ctx.Position()
	if pos.IsOpen() {
		return backtest.TrailingStop(ctx, s.TrailATR*atr)
	}

	hi, lo := s.high.Last(), s.low.Last()
	side := backtest.Long
	if s.Short && ctx.Bar().Close < (hi+lo)/2 {
		side = backtest.Short
	}

	trigger := hi
	if side == backtest.Short {
		trigger = lo
	}
	stop := trigger - float64(side)*s.StopATR*atr
	if stop <= 0 {
		return nil
	}

	size, err := ctx.RiskSize(s.RiskPct, trigger, stop)
	if err != nil {
		return ignoreRejected(err)
	}
	size = math.Min(size, affordableEquity(ctx, 0.9, trigger))

	req := backtest.OrderRequest{
		Size:     size,
		Kind:     backtest.Stop,
		Price:    trigger,
		StopLoss: someFloat(stop),
		Tag:      "breakout-" + side.String(),
	}
	if side == backtest.Long {
		_, err = ctx.Buy(req)
	} else {
		_, err = ctx.Sell(req)
	}
	return ignoreRejected(err)
}
