package strategies

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/market"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bars(t *testing.T, closes []float64, span float64) *market.BarTable {
	t.Helper()

	out := make([]market.Bar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		o := prev
		out[i] = market.Bar{
			Time:   t0.Add(time.Duration(i) * time.Hour),
			Open:   o,
			High:   math.Max(o, c) + span,
			Low:    math.Min(o, c) - span,
			Close:  c,
			Volume: 100,
		}
		prev = c
	}
	tbl, err := market.NewBarTable(out, nil)
	require.NoError(t, err)
	tbl.Symbol = "TEST"
	return tbl
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = 100 + 10*math.Sin(x/7) + 3*math.Sin(x/3.1)
	}
	return out
}

// rally rises for up bars then falls for down bars.
func rally(up, down int) []float64 {
	out := make([]float64, 0, up+down)
	p := 100.0
	for range up {
		p += 0.5
		out = append(out, p)
	}
	for range down {
		p -= 0.5
		out = append(out, p)
	}
	return out
}

func run(t *testing.T, tbl *market.BarTable, name string, params map[string]any) *backtest.Result {
	t.Helper()

	s, err := New(name, params)
	require.NoError(t, err)
	cfg := backtest.DefaultConfig()
	cfg.CloseAtEnd = true
	e, err := backtest.NewEngine(tbl, cfg)
	require.NoError(t, err)
	res, err := e.Run(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, backtest.StatusComplete, res.Status)
	return res
}

func TestNamesAndAliases(t *testing.T) {
	assert.Equal(t, []string{"breakout", "buy-hold", "ema-cross", "noop", "rsi-reversion", "sma-cross"}, Names())

	s, err := New(" SMACross ", nil)
	require.NoError(t, err)
	assert.Equal(t, "sma-cross", s.(backtest.Named).Name())

	_, err = New("martingale", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported: breakout")
}

func TestParamsDecode(t *testing.T) {
	// JSON numbers arrive as float64.
	s, err := New("sma-cross", map[string]any{"fast": float64(5), "slow": 12, "short": true})
	require.NoError(t, err)

	sc := s.(*SMACross)
	assert.Equal(t, 5, sc.Fast)
	assert.Equal(t, 12, sc.Slow)
	assert.True(t, sc.Short)
	assert.Equal(t, 0.95, sc.Fraction)

	assert.Contains(t, Params(s), "fast: 5")
}

func TestParamsRejected(t *testing.T) {
	tests := []struct {
		name   string
		strat  string
		params map[string]any
	}{
		{"unknown key", "sma-cross", map[string]any{"fsat": 5}},
		{"slow not above fast", "sma-cross", map[string]any{"fast": 30, "slow": 30}},
		{"wrong type", "ema-cross", map[string]any{"fast": "quick"}},
		{"risk too large", "breakout", map[string]any{"risk_pct": 0.5}},
		{"exit below oversold", "rsi-reversion", map[string]any{"oversold": 40, "exit": 35}},
		{"fraction zero", "buy-hold", map[string]any{"fraction": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.strat, tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.strat)
		})
	}
}

func TestNoopNeverTrades(t *testing.T) {
	res := run(t, bars(t, wave(100), 0.5), "noop", nil)

	assert.Empty(t, res.Trades)
	assert.Empty(t, res.Orders)
	assert.InDelta(t, 1e6, res.Stats.FinalEquity, 1e-9)
}

func TestBuyHold(t *testing.T) {
	closes := rally(60, 0)
	res := run(t, bars(t, closes, 0.2), "buy-hold", nil)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, backtest.Long, tr.Side)
	assert.Equal(t, math.Floor(1e6*0.95/closes[0]), tr.Size)
	assert.Equal(t, 1, tr.EntryBar)
	assert.Equal(t, backtest.ExitEndOfRun, tr.ExitReason)
	assert.Greater(t, tr.PnL, 0.0)
}

func TestSMACross(t *testing.T) {
	tbl := bars(t, wave(400), 0.5)

	t.Run("long only", func(t *testing.T) {
		res := run(t, tbl, "sma-cross", map[string]any{"fast": 5, "slow": 15})
		require.NotEmpty(t, res.Trades)
		for _, tr := range res.Trades {
			assert.Equal(t, backtest.Long, tr.Side)
		}
	})

	t.Run("reversing", func(t *testing.T) {
		res := run(t, tbl, "sma-cross", map[string]any{"fast": 5, "slow": 15, "short": true})
		sides := map[backtest.Side]int{}
		for _, tr := range res.Trades {
			sides[tr.Side]++
		}
		assert.Positive(t, sides[backtest.Long])
		assert.Positive(t, sides[backtest.Short])
	})
}

func TestEMACross(t *testing.T) {
	tbl := bars(t, wave(400), 0.5)
	base := map[string]any{"fast": 5, "slow": 15, "atr_period": 10}

	res := run(t, tbl, "ema-cross", base)
	require.NotEmpty(t, res.Trades)
	for _, tr := range res.Trades {
		assert.Contains(t, []backtest.ExitReason{
			backtest.ExitStopLoss, backtest.ExitTakeProfit, backtest.ExitClose, backtest.ExitEndOfRun,
		}, tr.ExitReason)
	}

	var brackets int
	for _, o := range res.Orders {
		if o.Role == backtest.RoleStopLoss || o.Role == backtest.RoleTakeProfit {
			brackets++
		}
	}
	assert.Positive(t, brackets)

	t.Run("risk policy veto", func(t *testing.T) {
		p := map[string]any{"fast": 5, "slow": 15, "atr_period": 10, "max_risk_pct": 0.001}
		res := run(t, tbl, "ema-cross", p)
		assert.Empty(t, res.Trades)
	})

	t.Run("adx filter", func(t *testing.T) {
		p := map[string]any{"fast": 5, "slow": 15, "atr_period": 10, "adx_period": 14, "min_adx": 100}
		res := run(t, tbl, "ema-cross", p)
		assert.Empty(t, res.Trades)
	})
}

func TestBreakoutTrailsOut(t *testing.T) {
	res := run(t, bars(t, rally(150, 60), 0.3), "breakout", nil)

	require.NotEmpty(t, res.Trades)
	first := res.Trades[0]
	assert.Equal(t, backtest.Long, first.Side)
	assert.Equal(t, backtest.ExitStopLoss, first.ExitReason)
	assert.Greater(t, first.PnL, 0.0)

	var stopEntries int
	for _, o := range res.Orders {
		if o.Role == backtest.RoleEntry && o.Kind == backtest.Stop && o.Status == backtest.Filled {
			stopEntries++
		}
	}
	assert.Equal(t, len(res.Trades), stopEntries)
}

func TestRSIReversion(t *testing.T) {
	res := run(t, bars(t, wave(400), 0.5), "rsi-reversion", nil)

	require.NotEmpty(t, res.Trades)
	for _, tr := range res.Trades {
		assert.Equal(t, backtest.Long, tr.Side)
		assert.Equal(t, "oversold", tr.Tag)
	}

	t.Run("wide band blocks entries", func(t *testing.T) {
		banded := run(t, bars(t, wave(400), 0.5), "rsi-reversion", map[string]any{"band": 5})
		assert.Empty(t, banded.Trades)
	})
}

func TestSchema(t *testing.T) {
	raw, err := Schema("ema-cross")
	require.NoError(t, err)

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "ema-cross-params", schema.Title)
	for _, key := range []string{"fast", "slow", "risk_pct", "adx_period", "max_risk_pct", "short"} {
		assert.Contains(t, schema.Properties, key)
	}

	_, err = Schema("nope")
	assert.Error(t, err)
}
