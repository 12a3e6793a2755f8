package journal

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var runColumns = []string{"run_id", "created", "strategy", "symbol", "params",
	"start_time", "end_time", "bars",
	"starting_cash", "final_equity", "return_pct", "max_dd_pct", "sharpe",
	"trades", "win_rate_pct", "profit_factor", "commission", "status"}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Strategy string
	Symbol   string
	Limit    uint64
}

// ListRuns returns runs newest first.
func (j *SQLite) ListRuns(f RunFilter) ([]RunRecord, error) {
	b := j.sq.Select(runColumns...).From("runs").OrderBy("created DESC", "run_id DESC")
	if f.Strategy != "" {
		b = b.Where(sq.Eq{"strategy": f.Strategy})
	}
	if f.Symbol != "" {
		b = b.Where(sq.Eq{"symbol": f.Symbol})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	query, args, err := j.sq.Select(runColumns...).From("runs").
		Where(sq.Eq{"run_id": runID}).ToSql()
	if err != nil {
		return RunRecord{}, err
	}

	r, err := scanRun(j.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q not found", runID)
	}
	return r, err
}

// ListTrades returns the trades of a run in close order.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	query, args, err := j.sq.
		Select("run_id", "trade_id", "side", "size", "entry_time", "exit_time",
			"entry_price", "exit_price", "pnl", "return_pct", "commission", "tag", "exit_reason").
		From("trades").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("trade_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.RunID, &t.TradeID, &t.Side, &t.Size, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.ReturnPct, &t.Commission, &t.Tag, &t.ExitReason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns the equity curve of a run in bar order.
func (j *SQLite) ListEquity(runID string) ([]EquityRecord, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}
	query, args, err := j.sq.
		Select("run_id", "bar", "time", "cash", "equity", "peak", "position").
		From("equity").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("bar ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var e EquityRecord
		if err := rows.Scan(&e.RunID, &e.Bar, &e.Time, &e.Cash, &e.Equity, &e.Peak, &e.Position); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRun removes a run with its trades and equity curve.
func (j *SQLite) DeleteRun(runID string) error {
	if err := j.Flush(); err != nil {
		return err
	}
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	for _, table := range []string{"equity", "trades", "runs"} {
		query, args, err := j.sq.Delete(table).Where(sq.Eq{"run_id": runID}).ToSql()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var r RunRecord
	err := s.Scan(&r.RunID, &r.Created, &r.Strategy, &r.Symbol, &r.Params,
		&r.Start, &r.End, &r.Bars,
		&r.StartingCash, &r.FinalEquity, &r.ReturnPct, &r.MaxDDPct, &r.Sharpe,
		&r.Trades, &r.WinRatePct, &r.ProfitFactor, &r.Commission, &r.Status)
	return r, err
}
