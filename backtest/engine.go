// Package backtest replays a bar table through a strategy and reports the
// resulting trades, equity curve and statistics.
//
// Each bar runs in a fixed order: the pending exit and protective legs,
// then the pending entry, then mark-to-market at the close, then the
// strategy's Next. Orders submitted on bar N fill no earlier than N+1.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/pkg/id"
)

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver adds an observer that sees trades and equity points as the
// run produces them.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithRunID fixes the run ID instead of minting a new ULID.
func WithRunID(runID string) Option {
	return func(e *Engine) { e.runID = runID }
}

// Engine runs one backtest. The bar table may be shared by several engines
// running at the same time; everything else belongs to a single run.
type Engine struct {
	table     *market.BarTable
	cfg       Config
	log       *zap.Logger
	observers []Observer
	runID     string

	mu   sync.Mutex
	used bool
}

// NewEngine validates cfg and the table. Data errors are returned as
// *BadDataError before anything is replayed.
func NewEngine(table *market.BarTable, cfg Config, opts ...Option) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("backtest: bar table is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		table: table,
		cfg:   cfg,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runID == "" {
		e.runID = id.New()
	}
	return e, nil
}

func (e *Engine) RunID() string { return e.runID }

// Run replays every bar through strat. On a strategy failure the result up
// to the failing bar is returned with a *StrategyError. If ctx is cancelled
// the current bar is finished and the partial result is returned with
// ctx.Err(). An engine runs once.
func (e *Engine) Run(ctx context.Context, strat Strategy) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}

	e.mu.Lock()
	if e.used {
		e.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	e.used = true
	e.mu.Unlock()

	r := newRun(e, strat)
	r.log.Info("backtest started",
		zap.String("strategy", r.name),
		zap.String("symbol", e.table.Symbol),
		zap.Int("bars", len(r.bars)),
	)

	err := r.init()
	if err == nil {
		err = r.replay(ctx)
	}

	status := StatusComplete
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}

	res := r.result(status)
	if oerr := r.notifyEnd(res); oerr != nil && err == nil {
		err = oerr
	}

	r.log.Info("backtest finished",
		zap.String("status", string(status)),
		zap.Int("bars", res.Stats.Bars),
		zap.Int("trades", res.Stats.Trades),
		zap.Float64("final_equity", res.Stats.FinalEquity),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, err
}

// run holds the mutable state of one backtest.
type run struct {
	cfg   Config
	table *market.BarTable
	bars  []market.Bar
	log   *zap.Logger
	runID string

	strat Strategy
	name  string
	ctx   *Context
	data  *Data
	phase Phase

	// index is the current bar (-1 during Init); visible is how many
	// values a Series exposes.
	index   int
	visible int
	ready   int

	acct *account
	book *orderBook

	indicators     []*Series
	indicatorNames map[string]struct{}

	equity   []EquityPoint
	warnings []Warning

	fault    error
	shapeErr error

	observers []Observer
	obsErr    error
}

func newRun(e *Engine, strat Strategy) *run {
	r := &run{
		cfg:            e.cfg,
		table:          e.table,
		bars:           e.table.Bars(),
		log:            e.log.With(zap.String("run_id", e.runID)),
		runID:          e.runID,
		strat:          strat,
		name:           strategyName(strat),
		index:          -1,
		acct:           newAccount(e.cfg),
		book:           newOrderBook(),
		indicatorNames: map[string]struct{}{},
		observers:      e.observers,
	}
	r.data = newData(r, e.table)
	r.ctx = &Context{r: r, pos: &Position{r: r}}
	return r
}

func (r *run) init() error {
	r.phase = PhaseInit
	r.visible = len(r.bars)

	err := r.call(r.strat.Init)
	var shape *IndicatorShapeError
	switch {
	case errors.As(err, &shape):
		return shape
	case err != nil:
		return &StrategyError{Bar: -1, Phase: PhaseInit, Err: err}
	case r.shapeErr != nil:
		return r.shapeErr
	}

	slowest := ""
	for _, s := range r.indicators {
		if w := indicators.Warmup(s.values); w > r.ready {
			r.ready, slowest = w, s.name
		}
	}
	if r.ready > 0 {
		r.log.Debug("indicator warmup", zap.Int("bars", r.ready), zap.String("indicator", slowest))
	}
	if r.ready >= len(r.bars) {
		r.warn(fmt.Sprintf("indicator %s is never defined over %d bars; Next will not be called", slowest, len(r.bars)))
	}
	r.phase = PhaseNext
	return nil
}

func (r *run) replay(ctx context.Context) error {
	last := len(r.bars) - 1

	for i, bar := range r.bars {
		if err := ctx.Err(); err != nil {
			r.log.Warn("backtest cancelled", zap.Int("bar", i))
			return err
		}

		r.index = i
		r.visible = i + 1

		exposed := r.match(i, bar)
		r.acct.markToMarket(bar.Close)

		var stratErr error
		if i >= r.ready {
			if err := r.call(r.strat.Next); err != nil {
				stratErr = &StrategyError{Bar: i, Time: bar.Time, Phase: PhaseNext, Err: err}
			}
		}

		if stratErr == nil && i == last && r.cfg.CloseAtEnd && r.acct.pos.open {
			r.closeAtEnd(i, bar)
			exposed = true
		}

		pt := r.acct.point(bar, i, exposed)
		r.equity = append(r.equity, pt)
		r.notifyEquity(pt)

		if stratErr != nil {
			r.log.Error("strategy failed", zap.Int("bar", i), zap.Error(stratErr))
			return stratErr
		}
		if r.obsErr != nil {
			return r.obsErr
		}
	}
	return nil
}

// call runs a strategy callback. A panic is turned into an error, and a
// misuse recorded during the callback (such as registering an indicator in
// Next) fails it.
func (r *run) call(fn func(*Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	err = fn(r.ctx)
	if err == nil && r.fault != nil {
		err = r.fault
	}
	r.fault = nil
	return err
}

func (r *run) closeAtEnd(i int, bar market.Bar) {
	r.book.cancel(r.book.entry, "end of run")
	r.book.closeOut("end of run")

	tr := r.acct.close(bar.Close, i, bar.Time, ExitEndOfRun)
	r.acct.markToMarket(bar.Close)
	r.log.Debug("position closed at end of run", zap.Int("bar", i), zap.Float64("pnl", tr.PnL))
	r.notifyTrade(tr)
}

func (r *run) warn(msg string) {
	w := Warning{Bar: r.index, Message: msg}
	if r.index >= 0 {
		w.Time = r.bars[r.index].Time
	}
	r.warnings = append(r.warnings, w)
	r.log.Warn(msg, zap.Int("bar", r.index))
}

type RunStatus string

const (
	StatusComplete  RunStatus = "complete"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Result is everything a run produced. A failed or cancelled run returns
// the bars it got through.
type Result struct {
	RunID    string
	Strategy string
	Symbol   string
	Config   Config
	Status   RunStatus

	Stats    Stats
	Trades   []Trade
	Equity   []EquityPoint
	Orders   []Order
	Warnings []Warning
}

func (r *run) result(status RunStatus) *Result {
	n := len(r.equity)
	return &Result{
		RunID:    r.runID,
		Strategy: r.name,
		Symbol:   r.table.Symbol,
		Config:   r.cfg,
		Status:   status,
		Stats:    computeStats(r.cfg, r.bars[:n], r.equity, r.acct.trades, r.acct.fees),
		Trades:   append([]Trade(nil), r.acct.trades...),
		Equity:   append([]EquityPoint(nil), r.equity...),
		Orders:   r.book.history(),
		Warnings: append([]Warning(nil), r.warnings...),
	}
}
