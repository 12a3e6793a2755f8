package backtest

import (
	"time"

	"github.com/rustyeddy/barsim/market"
)

type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitClose      ExitReason = "close"
	ExitEndOfRun   ExitReason = "end_of_run"
)

// Trade is a closed position. Trades are appended when a position closes
// and never change afterwards.
type Trade struct {
	ID   int
	Side Side
	Size float64

	EntryBar   int
	ExitBar    int
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64

	// PnL is side*(exit-entry)*size minus both fills' commission.
	PnL        float64
	ReturnPct  float64
	Commission float64

	Tag        string
	ExitReason ExitReason
}

// EquityPoint is the account marked to a bar's close.
type EquityPoint struct {
	Bar    int
	Time   time.Time
	Cash   float64
	Equity float64
	Peak   float64

	// Position is the signed size held at the close (negative for shorts).
	Position float64

	// Exposed is set when a position was open at any point of the bar.
	Exposed bool
}

type position struct {
	orderID    int64
	open       bool
	side       Side
	size       float64
	entryPrice float64
	entryBar   int
	entryTime  time.Time
	entryFee   float64
	tag        string
}

// account tracks cash and the single open position. Longs debit cash by the
// notional; shorts credit it and carry an equal liability, so in both cases
// equity = cash + side*size*price.
type account struct {
	startingCash float64
	rate         float64

	cash     float64
	equity   float64
	peak     float64
	realized float64
	fees     float64

	pos    position
	trades []Trade
}

func newAccount(cfg Config) *account {
	return &account{
		startingCash: cfg.StartingCash,
		rate:         cfg.Commission,
		cash:         cfg.StartingCash,
		equity:       cfg.StartingCash,
		peak:         cfg.StartingCash,
	}
}

func (a *account) fee(size, price float64) float64 {
	return a.rate * size * price
}

// equityAt values the account at price without touching state.
func (a *account) equityAt(price float64) float64 {
	if !a.pos.open {
		return a.cash
	}
	return a.cash + float64(a.pos.side)*a.pos.size*price
}

// unrealized is the open trade's P&L at price, net of the entry fee.
func (a *account) unrealized(price float64) float64 {
	if !a.pos.open {
		return 0
	}
	return float64(a.pos.side)*(price-a.pos.entryPrice)*a.pos.size - a.pos.entryFee
}

func (a *account) markToMarket(close float64) {
	a.equity = a.equityAt(close)
	if a.equity > a.peak {
		a.peak = a.equity
	}
}

// canAfford reports whether an entry of size at price plus its fee fits in
// the cash (longs) or the equity (shorts) available.
func (a *account) canAfford(side Side, size, price float64) bool {
	cost := size*price + a.fee(size, price)
	budget := a.cash
	if side == Short {
		// Current equity, not starting cash: losses shrink what can be shorted.
		budget = a.equityAt(price)
	}
	return cost <= budget*(1+1e-12)
}

func (a *account) open(side Side, size, price float64, bar int, t time.Time, tag string) {
	fee := a.fee(size, price)
	a.cash -= float64(side)*size*price + fee
	a.fees += fee
	a.pos = position{
		open:       true,
		side:       side,
		size:       size,
		entryPrice: price,
		entryBar:   bar,
		entryTime:  t,
		entryFee:   fee,
		tag:        tag,
	}
}

func (a *account) close(price float64, bar int, t time.Time, reason ExitReason) Trade {
	p := a.pos
	fee := a.fee(p.size, price)
	a.cash += float64(p.side)*p.size*price - fee
	a.fees += fee

	pnl := float64(p.side)*(price-p.entryPrice)*p.size - p.entryFee - fee
	a.realized += pnl

	tr := Trade{
		ID:         len(a.trades) + 1,
		Side:       p.side,
		Size:       p.size,
		EntryBar:   p.entryBar,
		ExitBar:    bar,
		EntryTime:  p.entryTime,
		ExitTime:   t,
		EntryPrice: p.entryPrice,
		ExitPrice:  price,
		PnL:        pnl,
		Commission: p.entryFee + fee,
		Tag:        p.tag,
		ExitReason: reason,
	}
	if notional := p.size * p.entryPrice; notional > 0 {
		tr.ReturnPct = 100 * pnl / notional
	}

	a.trades = append(a.trades, tr)
	a.pos = position{}
	return tr
}

func (a *account) point(bar market.Bar, i int, exposed bool) EquityPoint {
	return EquityPoint{
		Bar:      i,
		Time:     bar.Time,
		Cash:     a.cash,
		Equity:   a.equity,
		Peak:     a.peak,
		Position: float64(a.pos.side) * a.pos.size,
		Exposed:  exposed,
	}
}
