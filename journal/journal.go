// Package journal persists backtest runs, their closed trades and their
// equity curves.
package journal

import "time"

// RunRecord is the summary row of one backtest run.
type RunRecord struct {
	RunID    string
	Created  time.Time
	Strategy string
	Symbol   string
	Params   string // strategy parameters, YAML

	Start time.Time
	End   time.Time
	Bars  int

	StartingCash float64
	FinalEquity  float64
	ReturnPct    float64
	MaxDDPct     float64
	Sharpe       float64

	Trades       int
	WinRatePct   float64
	ProfitFactor float64
	Commission   float64

	// Status is "complete", "cancelled" or "failed".
	Status string
}

type TradeRecord struct {
	RunID      string
	TradeID    int
	Side       string
	Size       float64
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ReturnPct  float64
	Commission float64
	Tag        string
	ExitReason string
}

type EquityRecord struct {
	RunID    string
	Bar      int
	Time     time.Time
	Cash     float64
	Equity   float64
	Peak     float64
	Position float64 // signed units
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// Discard is a Journal that drops every record.
type Discard struct{}

func (Discard) RecordRun(RunRecord) error       { return nil }
func (Discard) RecordTrade(TradeRecord) error   { return nil }
func (Discard) RecordEquity(EquityRecord) error { return nil }
func (Discard) Close() error                    { return nil }
