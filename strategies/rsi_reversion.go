package strategies

import (
	"math"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/indicators"
)

// RSIReversionConfig holds the rsi-reversion parameters.
type RSIReversionConfig struct {
	Period   int     `yaml:"period" json:"period" validate:"gt=1"`
	Oversold float64 `yaml:"oversold" json:"oversold" validate:"gt=0,lt=100"`
	Exit     float64 `yaml:"exit" json:"exit" validate:"gtfield=Oversold,lt=100"`

	// Band additionally requires the close to sit Band standard deviations
	// below its BandPeriod SMA. 0 disables it.
	Band       float64 `yaml:"band" json:"band" validate:"gte=0"`
	BandPeriod int     `yaml:"band_period" json:"band_period" validate:"gt=1"`

	Discount float64 `yaml:"discount" json:"discount" validate:"gte=0,lt=1"` // limit price below the close
	StopPct  float64 `yaml:"stop_pct" json:"stop_pct" validate:"gte=0,lt=1"` // 0 means no stop-loss
	Fraction float64 `yaml:"fraction" json:"fraction" validate:"gt=0,lte=1"`
}

func RSIReversionConfigDefaults() RSIReversionConfig {
	return RSIReversionConfig{
		Period:     14,
		Oversold:   30,
		Exit:       55,
		BandPeriod: 20,
		Fraction:   0.95,
	}
}

// RSIReversion buys oversold dips with a limit order and sells once RSI
// recovers above Exit.
type RSIReversion struct {
	RSIReversionConfig `yaml:",inline"`

	rsi, mean, dev *backtest.Series
}

func NewRSIReversion() *RSIReversion {
	return &RSIReversion{RSIReversionConfig: RSIReversionConfigDefaults()}
}

func (*RSIReversion) Name() string { return "rsi-reversion" }

func (s *RSIReversion) Init(ctx *backtest.Context) error {
	closes := ctx.Data().Close.Values()

	var err error
	if s.rsi, err = ctx.Register("rsi", indicators.Period(indicators.RSI, s.Period), closes); err != nil {
		return err
	}
	s.mean, s.dev = nil, nil
	if s.Band == 0 {
		return nil
	}
	if s.mean, err = ctx.Register("band_mean", indicators.Period(indicators.SMA, s.BandPeriod), closes); err != nil {
		return err
	}
	s.dev, err = ctx.Register("band_dev", indicators.Period(indicators.StdDev, s.BandPeriod), closes)
	return err
}

func (s *RSIReversion) Next(ctx *backtest.Context) error {
	rsi := s.rsi.Last()
	pos := ctx.Position()

	if pos.IsOpen() {
		if rsi > s.Exit {
			return closeOpen(pos)
		}
		return nil
	}
	if rsi >= s.Oversold {
		return nil
	}

	last := ctx.Bar().Close
	if s.mean != nil && last >= s.mean.Last()-s.Band*s.dev.Last() {
		return nil
	}

	limit := last * (1 - s.Discount)
	req := backtest.OrderRequest{
		Size:  affordable(ctx, s.Fraction, limit),
		Kind:  backtest.Limit,
		Price: limit,
		Tag:   "oversold",
	}
	if s.StopPct > 0 {
		req.StopLoss = someFloat(math.Min(limit, ctx.Bar().Low) * (1 - s.StopPct))
	}
	_, err := ctx.Buy(req)
	return ignoreRejected(err)
}
