package strategies

import (
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/risk"
)

// EMACrossConfig holds the ema-cross parameters.
type EMACrossConfig struct {
	Fast int `yaml:"fast" json:"fast" validate:"gt=0"`
	Slow int `yaml:"slow" json:"slow" validate:"gtfield=Fast"`

	RiskPct   float64 `yaml:"risk_pct" json:"risk_pct" validate:"gt=0,lte=0.1"` // fraction of equity at risk per trade
	ATRPeriod int     `yaml:"atr_period" json:"atr_period" validate:"gt=0"`
	StopATR   float64 `yaml:"stop_atr" json:"stop_atr" validate:"gt=0"` // stop distance in ATRs
	RR        float64 `yaml:"rr" json:"rr" validate:"gt=0"`             // take-profit multiple of the stop distance

	// ADX filter. ADXPeriod 0 disables it.
	ADXPeriod int     `yaml:"adx_period" json:"adx_period" validate:"gte=0"`
	MinADX    float64 `yaml:"min_adx" json:"min_adx" validate:"gte=0,lte=100"`

	// Risk policy every entry must pass. Zero fields are not enforced.
	MaxRiskPct float64 `yaml:"max_risk_pct" json:"max_risk_pct" validate:"gte=0,lte=1"`
	MinRR      float64 `yaml:"min_rr" json:"min_rr" validate:"gte=0"`

	Short bool `yaml:"short" json:"short"`
}

func EMACrossConfigDefaults() EMACrossConfig {
	return EMACrossConfig{
		Fast:       20,
		Slow:       50,
		RiskPct:    0.005,
		ATRPeriod:  14,
		StopATR:    2,
		RR:         2,
		MaxRiskPct: 0.01,
		MinRR:      1.5,
		Short:      true,
	}
}

// EMACross trades fast/slow EMA crosses with risk-sized bracket orders.
//   - Enters only on a cross, optionally only when ADX shows a trend
//   - Reverses on the opposite cross (close then open)
//   - Stop is StopATR ATRs away, take-profit RR times that
type EMACross struct {
	EMACrossConfig `yaml:",inline"`

	fast, slow, atr, adx *backtest.Series
}

func NewEMACross() *EMACross {
	return &EMACross{EMACrossConfig: EMACrossConfigDefaults()}
}

func (*EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Init(ctx *backtest.Context) error {
	d := ctx.Data()
	closes := d.Close.Values()
	highs, lows := d.High.Values(), d.Low.Values()

	var err error
	if s.fast, err = ctx.Register("ema_fast", indicators.Period(indicators.EMA, s.Fast), closes); err != nil {
		return err
	}
	if s.slow, err = ctx.Register("ema_slow", indicators.Period(indicators.EMA, s.Slow), closes); err != nil {
		return err
	}
	if s.atr, err = ctx.Register("atr", indicators.ATRFunc(s.ATRPeriod), highs, lows, closes); err != nil {
		return err
	}
	s.adx = nil
	if s.ADXPeriod > 0 {
		s.adx, err = ctx.Register("adx", indicators.ADXFunc(s.ADXPeriod), highs, lows, closes)
	}
	return err
}

func (s *EMACross) Next(ctx *backtest.Context) error {
	var side backtest.Side
	switch {
	case backtest.Crossover(s.fast, s.slow):
		side = backtest.Long
	case backtest.Crossunder(s.fast, s.slow):
		side = backtest.Short
	default:
		return nil
	}

	pos := ctx.Position()
	if pos.IsOpen() {
		if pos.Side() == side {
			return nil
		}
		if err := closeOpen(pos); err != nil {
			return err
		}
	}
	if side == backtest.Short && !s.Short {
		return nil
	}
	if s.adx != nil && s.adx.Last() < s.MinADX {
		ctx.Logger().Debug("cross ignored, no trend",
			zap.Int("bar", ctx.Index()), zap.Float64("adx", s.adx.Last()))
		return nil
	}

	return s.enter(ctx, side)
}

func (s *EMACross) enter(ctx *backtest.Context, side backtest.Side) error {
	entry := ctx.Bar().Close
	dist := s.StopATR * s.atr.Last()
	if math.IsNaN(dist) || dist <= 0 {
		return nil
	}
	dir := float64(side)
	stop := entry - dir*dist
	tp := entry + dir*s.RR*dist
	if stop <= 0 {
		return nil
	}

	size, err := ctx.RiskSize(s.RiskPct, entry, stop)
	if err != nil {
		return ignoreRejected(err)
	}
	size = math.Min(size, affordableEquity(ctx, 0.95, entry))

	dec := risk.Evaluate(risk.Policy{MaxRiskPct: s.MaxRiskPct, MinRR: s.MinRR}, risk.TradeIntent{
		Units:      size,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: tp,
	}, ctx.Equity())
	if !dec.Allowed {
		codes := make([]string, 0, len(dec.Violations))
		for _, v := range dec.Violations {
			codes = append(codes, v.Code)
		}
		ctx.Logger().Info("entry vetoed by risk policy",
			zap.Int("bar", ctx.Index()), zap.Strings("violations", codes))
		return nil
	}

	req := backtest.OrderRequest{
		Size:       size,
		StopLoss:   someFloat(stop),
		TakeProfit: someFloat(tp),
		Tag:        "ema-" + side.String(),
	}
	if side == backtest.Long {
		_, err = ctx.Buy(req)
	} else {
		_, err = ctx.Sell(req)
	}
	return ignoreRejected(err)
}
