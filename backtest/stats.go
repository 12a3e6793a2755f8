package backtest

import (
	"math"
	"time"

	"github.com/rustyeddy/barsim/market"
)

// Stats summarises a run. Percentages are in percent (12.5 means 12.5%).
type Stats struct {
	Start    time.Time     `json:"start" yaml:"start"`
	End      time.Time     `json:"end" yaml:"end"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Bars     int           `json:"bars" yaml:"bars"`

	StartingCash     float64 `json:"starting_cash" yaml:"starting_cash"`
	FinalEquity      float64 `json:"final_equity" yaml:"final_equity"`
	ReturnPct        float64 `json:"return_pct" yaml:"return_pct"`
	BuyHoldReturnPct float64 `json:"buy_hold_return_pct" yaml:"buy_hold_return_pct"`
	PeakEquity       float64 `json:"peak_equity" yaml:"peak_equity"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxDrawdownBars  int     `json:"max_drawdown_bars" yaml:"max_drawdown_bars"`

	Trades        int     `json:"trades" yaml:"trades"`
	WinRatePct    float64 `json:"win_rate_pct" yaml:"win_rate_pct"`
	BestTradePct  float64 `json:"best_trade_pct" yaml:"best_trade_pct"`
	WorstTradePct float64 `json:"worst_trade_pct" yaml:"worst_trade_pct"`
	AvgWin        float64 `json:"avg_win" yaml:"avg_win"`
	AvgLoss       float64 `json:"avg_loss" yaml:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor" yaml:"profit_factor"`
	Expectancy    float64 `json:"expectancy" yaml:"expectancy"`

	ExposurePct     float64 `json:"exposure_pct" yaml:"exposure_pct"`
	Sharpe          float64 `json:"sharpe" yaml:"sharpe"`
	Sortino         float64 `json:"sortino" yaml:"sortino"`
	TotalCommission float64 `json:"total_commission" yaml:"total_commission"`
}

func computeStats(cfg Config, bars []market.Bar, equity []EquityPoint, trades []Trade, fees float64) Stats {
	s := Stats{
		StartingCash:    cfg.StartingCash,
		FinalEquity:     cfg.StartingCash,
		PeakEquity:      cfg.StartingCash,
		Bars:            len(equity),
		TotalCommission: fees,
	}

	if n := len(equity); n > 0 {
		s.Start = equity[0].Time
		s.End = equity[n-1].Time
		s.Duration = s.End.Sub(s.Start)
		s.FinalEquity = equity[n-1].Equity
		s.PeakEquity = equity[n-1].Peak
	}
	s.ReturnPct = 100 * (s.FinalEquity/cfg.StartingCash - 1)

	if n := len(bars); n > 0 && bars[0].Close > 0 {
		s.BuyHoldReturnPct = 100 * (bars[n-1].Close/bars[0].Close - 1)
	}

	s.MaxDrawdownPct, s.MaxDrawdownBars = drawdown(equity)
	s.ExposurePct = exposure(equity)
	s.Sharpe, s.Sortino = ratios(cfg, equity)
	tradeStats(&s, trades)
	return s
}

// drawdown returns the largest (peak-equity)/peak in percent and the
// longest run of bars spent below a previous peak.
func drawdown(equity []EquityPoint) (float64, int) {
	var maxDD float64
	var longest, cur int
	for _, p := range equity {
		if p.Peak <= 0 {
			continue
		}
		dd := (p.Peak - p.Equity) / p.Peak
		maxDD = math.Max(maxDD, dd)
		if p.Equity < p.Peak {
			cur++
			longest = max(longest, cur)
		} else {
			cur = 0
		}
	}
	return 100 * maxDD, longest
}

func exposure(equity []EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	var n int
	for _, p := range equity {
		if p.Exposed {
			n++
		}
	}
	return 100 * float64(n) / float64(len(equity))
}

// returns computes per-bar equity returns; the first bar is measured
// against the starting cash.
func returns(start float64, equity []EquityPoint) []float64 {
	out := make([]float64, 0, len(equity))
	prev := start
	for _, p := range equity {
		if prev > 0 {
			out = append(out, p.Equity/prev-1)
		} else {
			out = append(out, 0)
		}
		prev = p.Equity
	}
	return out
}

// ratios returns the annualised Sharpe and Sortino ratios of the per-bar
// returns (risk-free rate zero). Either is 0 when its deviation is 0.
func ratios(cfg Config, equity []EquityPoint) (sharpe, sortino float64) {
	rets := returns(cfg.StartingCash, equity)
	n := len(rets)
	if n < 2 {
		return 0, 0
	}

	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(n)

	var ss, down float64
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
		if r < 0 {
			down += r * r
		}
	}
	std := math.Sqrt(ss / float64(n-1))
	downDev := math.Sqrt(down / float64(n))
	ann := math.Sqrt(cfg.BarsPerYear)

	if std > 0 {
		sharpe = mean / std * ann
	}
	if downDev > 0 {
		sortino = mean / downDev * ann
	}
	return sharpe, sortino
}

func tradeStats(s *Stats, trades []Trade) {
	s.Trades = len(trades)
	if len(trades) == 0 {
		return
	}

	var wins, losses int
	var grossWin, grossLoss, total float64
	s.BestTradePct = math.Inf(-1)
	s.WorstTradePct = math.Inf(1)

	for _, t := range trades {
		total += t.PnL
		s.BestTradePct = math.Max(s.BestTradePct, t.ReturnPct)
		s.WorstTradePct = math.Min(s.WorstTradePct, t.ReturnPct)
		switch {
		case t.PnL > 0:
			wins++
			grossWin += t.PnL
		case t.PnL < 0:
			losses++
			grossLoss += t.PnL
		}
	}

	s.WinRatePct = 100 * float64(wins) / float64(len(trades))
	s.Expectancy = total / float64(len(trades))
	if wins > 0 {
		s.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = grossLoss / float64(losses)
	}
	switch {
	case grossLoss < 0:
		s.ProfitFactor = grossWin / -grossLoss
	case grossWin > 0:
		s.ProfitFactor = math.Inf(1)
	}
}
