package backtest

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barsim/journal"
)

type recorder struct {
	trades []Trade
	equity []EquityPoint
	ended  *Result
	failAt int
}

func (r *recorder) OnTrade(_ string, t Trade) error {
	r.trades = append(r.trades, t)
	return nil
}

func (r *recorder) OnEquity(_ string, p EquityPoint) error {
	if r.failAt > 0 && p.Bar == r.failAt {
		return errors.New("disk full")
	}
	r.equity = append(r.equity, p)
	return nil
}

func (r *recorder) OnRunEnd(res *Result) error {
	r.ended = res
	return nil
}

func TestObserverSeesTradesAndEquity(t *testing.T) {
	t.Parallel()

	tbl := table(t, wave(100)...)
	rec := &recorder{}

	res := mustRun(t, tbl, DefaultConfig(), newCrossTrader(3, 10), WithObserver(rec), WithRunID("run-1"))

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, res.Trades, rec.trades)
	assert.Equal(t, res.Equity, rec.equity)
	assert.Same(t, res, rec.ended)
}

func TestObserverErrorStopsRun(t *testing.T) {
	t.Parallel()

	tbl := table(t, flat(10, 10)...)
	rec := &recorder{failAt: 4}

	res, err := runWith(t, tbl, DefaultConfig(), Funcs{}, WithObserver(rec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Len(t, res.Equity, 5)
	assert.Equal(t, StatusFailed, rec.ended.Status)
}

func TestJournalObserverSQLite(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	tbl := table(t, wave(150)...)
	cfg := DefaultConfig()
	cfg.CloseAtEnd = true

	obs := NewJournalObserver(j)
	obs.Params = "fast: 5\nslow: 20\n"
	res := mustRun(t, tbl, cfg, newCrossTrader(5, 20), WithObserver(obs))
	require.NotEmpty(t, res.Trades)

	run, err := j.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "crossTrader", run.Strategy)
	assert.Equal(t, "TEST", run.Symbol)
	assert.Equal(t, "complete", run.Status)
	assert.Equal(t, len(res.Trades), run.Trades)
	assert.InDelta(t, res.Stats.FinalEquity, run.FinalEquity, 1e-9)
	assert.Equal(t, obs.Params, run.Params)

	trades, err := j.ListTrades(res.RunID)
	require.NoError(t, err)
	require.Len(t, trades, len(res.Trades))
	for i, tr := range trades {
		assert.Equal(t, res.Trades[i].ID, tr.TradeID)
		assert.Equal(t, res.Trades[i].Side.String(), tr.Side)
		assert.InDelta(t, res.Trades[i].PnL, tr.PnL, 1e-9)
		assert.Equal(t, string(res.Trades[i].ExitReason), tr.ExitReason)
	}

	eq, err := j.ListEquity(res.RunID)
	require.NoError(t, err)
	assert.Len(t, eq, len(res.Equity))
}

func TestJournalObserverSkipEquity(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	obs := &JournalObserver{Journal: j, SkipEquity: true}
	res := mustRun(t, table(t, flat(5, 10)...), DefaultConfig(), Funcs{Label: "noop"}, WithObserver(obs))

	eq, err := j.ListEquity(res.RunID)
	require.NoError(t, err)
	assert.Empty(t, eq)

	run, err := j.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "noop", run.Strategy)
}
