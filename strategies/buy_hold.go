package strategies

import (
	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/backtest"
)

// BuyHold buys once on the first bar and holds to the end.
type BuyHold struct {
	// Fraction of cash to commit. Below 1 so a higher next open still fits.
	Fraction float64 `yaml:"fraction" validate:"gt=0,lte=1"`

	done bool
}

func NewBuyHold() *BuyHold { return &BuyHold{Fraction: 0.95} }

func (*BuyHold) Name() string { return "buy-hold" }

func (s *BuyHold) Init(*backtest.Context) error {
	s.done = false
	return nil
}

func (s *BuyHold) Next(ctx *backtest.Context) error {
	if s.done {
		return nil
	}
	s.done = true

	size := affordable(ctx, s.Fraction, ctx.Bar().Close)
	ctx.Logger().Debug("buy and hold", zap.Float64("size", size))
	_, err := ctx.Buy(backtest.OrderRequest{Size: size, Tag: "hold"})
	return ignoreRejected(err)
}
