package strategies

import "github.com/rustyeddy/barsim/backtest"

// Noop never trades. It is useful for checking data and buy-and-hold stats.
type Noop struct{}

func (*Noop) Name() string                 { return "noop" }
func (*Noop) Init(*backtest.Context) error { return nil }
func (*Noop) Next(*backtest.Context) error { return nil }
