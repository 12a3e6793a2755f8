package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// equityBatch is how many equity rows are buffered before they are
	// written in one transaction.
	equityBatch = 1000

	// equityRowsPerInsert keeps each multi-row INSERT under SQLite's
	// bound-parameter limit (7 columns per row).
	equityRowsPerInsert = 100
)

// SQLite journals runs, trades and equity into a SQLite database. Equity
// rows are buffered and committed in batches; they are flushed by
// RecordRun, ListEquity, DeleteRun, Flush and Close.
type SQLite struct {
	db *sql.DB
	sq sq.StatementBuilderType

	mu     sync.Mutex
	equity []EquityRecord
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	return &SQLite{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// RecordRun inserts or replaces the summary row for r.RunID.
func (j *SQLite) RecordRun(r RunRecord) error {
	if err := j.Flush(); err != nil {
		return err
	}
	query, args, err := j.sq.
		Insert("runs").
		Options("OR REPLACE").
		Columns("run_id", "created", "strategy", "symbol", "params",
			"start_time", "end_time", "bars",
			"starting_cash", "final_equity", "return_pct", "max_dd_pct", "sharpe",
			"trades", "win_rate_pct", "profit_factor", "commission", "status").
		Values(r.RunID, r.Created.UTC(), r.Strategy, r.Symbol, r.Params,
			r.Start.UTC(), r.End.UTC(), r.Bars,
			r.StartingCash, r.FinalEquity, r.ReturnPct, r.MaxDDPct, finite(r.Sharpe),
			r.Trades, r.WinRatePct, finite(r.ProfitFactor), r.Commission, r.Status).
		ToSql()
	if err != nil {
		return err
	}
	_, err = j.db.Exec(query, args...)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	query, args, err := j.sq.
		Insert("trades").
		Columns("run_id", "trade_id", "side", "size", "entry_time", "exit_time",
			"entry_price", "exit_price", "pnl", "return_pct", "commission", "tag", "exit_reason").
		Values(t.RunID, t.TradeID, t.Side, t.Size, t.EntryTime.UTC(), t.ExitTime.UTC(),
			t.EntryPrice, t.ExitPrice, t.PnL, t.ReturnPct, t.Commission, t.Tag, t.ExitReason).
		ToSql()
	if err != nil {
		return err
	}
	_, err = j.db.Exec(query, args...)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.equity = append(j.equity, e)
	if len(j.equity) < equityBatch {
		return nil
	}
	return j.flushLocked()
}

// Flush writes buffered equity rows.
func (j *SQLite) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *SQLite) flushLocked() error {
	if len(j.equity) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	for rows := j.equity; len(rows) > 0; {
		n := min(len(rows), equityRowsPerInsert)
		ins := j.sq.
			Insert("equity").
			Columns("run_id", "bar", "time", "cash", "equity", "peak", "position")
		for _, e := range rows[:n] {
			ins = ins.Values(e.RunID, e.Bar, e.Time.UTC(), e.Cash, e.Equity, e.Peak, e.Position)
		}
		query, args, err := ins.ToSql()
		if err == nil {
			_, err = tx.Exec(query, args...)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("journal: write equity: %w", err)
		}
		rows = rows[n:]
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	j.equity = j.equity[:0]
	return nil
}

func (j *SQLite) Close() error {
	return errors.Join(j.Flush(), j.db.Close())
}

// finite maps infinities (a profit factor with no losing trades) to the
// largest float so the row round-trips through REAL columns.
func finite(x float64) float64 {
	switch {
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	case math.IsNaN(x):
		return 0
	}
	return x
}
