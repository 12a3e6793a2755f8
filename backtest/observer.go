package backtest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/journal"
)

// Observer receives closed trades and equity points while a run is in
// progress. Returning an error stops the run after the current bar.
type Observer interface {
	OnTrade(runID string, t Trade) error
	OnEquity(runID string, p EquityPoint) error
}

// RunObserver is implemented by observers that want the final result.
type RunObserver interface {
	OnRunEnd(res *Result) error
}

func (r *run) notifyTrade(t Trade) {
	for _, o := range r.observers {
		if err := o.OnTrade(r.runID, t); err != nil && r.obsErr == nil {
			r.obsErr = fmt.Errorf("backtest: observer: %w", err)
			r.log.Error("observer failed", zap.Int("bar", r.index), zap.Error(err))
		}
	}
}

func (r *run) notifyEquity(p EquityPoint) {
	for _, o := range r.observers {
		if err := o.OnEquity(r.runID, p); err != nil && r.obsErr == nil {
			r.obsErr = fmt.Errorf("backtest: observer: %w", err)
			r.log.Error("observer failed", zap.Int("bar", r.index), zap.Error(err))
		}
	}
}

func (r *run) notifyEnd(res *Result) error {
	var first error
	for _, o := range r.observers {
		ro, ok := o.(RunObserver)
		if !ok {
			continue
		}
		if err := ro.OnRunEnd(res); err != nil && first == nil {
			first = fmt.Errorf("backtest: observer: %w", err)
		}
	}
	return first
}

// JournalObserver writes a run to a journal.Journal.
type JournalObserver struct {
	Journal journal.Journal

	// Params is stored with the run summary.
	Params string

	// SkipEquity drops per-bar equity rows, which dominate journal size on
	// long runs.
	SkipEquity bool
}

func NewJournalObserver(j journal.Journal) *JournalObserver {
	return &JournalObserver{Journal: j}
}

func (o *JournalObserver) OnTrade(runID string, t Trade) error {
	return o.Journal.RecordTrade(journal.TradeRecord{
		RunID:      runID,
		TradeID:    t.ID,
		Side:       t.Side.String(),
		Size:       t.Size,
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		PnL:        t.PnL,
		ReturnPct:  t.ReturnPct,
		Commission: t.Commission,
		Tag:        t.Tag,
		ExitReason: string(t.ExitReason),
	})
}

func (o *JournalObserver) OnEquity(runID string, p EquityPoint) error {
	if o.SkipEquity {
		return nil
	}
	return o.Journal.RecordEquity(journal.EquityRecord{
		RunID:    runID,
		Bar:      p.Bar,
		Time:     p.Time,
		Cash:     p.Cash,
		Equity:   p.Equity,
		Peak:     p.Peak,
		Position: p.Position,
	})
}

func (o *JournalObserver) OnRunEnd(res *Result) error {
	s := res.Stats
	return o.Journal.RecordRun(journal.RunRecord{
		RunID:        res.RunID,
		Created:      time.Now().UTC(),
		Strategy:     res.Strategy,
		Symbol:       res.Symbol,
		Params:       o.Params,
		Start:        s.Start,
		End:          s.End,
		Bars:         s.Bars,
		StartingCash: s.StartingCash,
		FinalEquity:  s.FinalEquity,
		ReturnPct:    s.ReturnPct,
		MaxDDPct:     s.MaxDrawdownPct,
		Sharpe:       s.Sharpe,
		Trades:       s.Trades,
		WinRatePct:   s.WinRatePct,
		ProfitFactor: s.ProfitFactor,
		Commission:   s.TotalCommission,
		Status:       string(res.Status),
	})
}
