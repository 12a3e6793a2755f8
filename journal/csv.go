package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVPaths names the files a CSV journal writes. Runs may be empty, in
// which case run summaries are dropped.
type CSVPaths struct {
	Trades string
	Equity string
	Runs   string
}

type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	runs   *csv.Writer
	files  []*os.File
}

var (
	tradesHeader = []string{"run_id", "trade_id", "side", "size", "entry_time", "exit_time",
		"entry_price", "exit_price", "pnl", "return_pct", "commission", "tag", "exit_reason"}
	equityHeader = []string{"run_id", "bar", "time", "cash", "equity", "peak", "position"}
	runsHeader   = []string{"run_id", "created", "strategy", "symbol", "start", "end", "bars",
		"starting_cash", "final_equity", "return_pct", "max_dd_pct", "sharpe",
		"trades", "win_rate_pct", "profit_factor", "commission", "status"}
)

func NewCSV(paths CSVPaths) (*CSVJournal, error) {
	j := &CSVJournal{}

	var err error
	if j.trades, err = j.create(paths.Trades, tradesHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if j.equity, err = j.create(paths.Equity, equityHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if paths.Runs != "" {
		if j.runs, err = j.create(paths.Runs, runsHeader); err != nil {
			_ = j.closeFiles()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) create(path string, header []string) (*csv.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	return w, w.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.RunID,
		strconv.Itoa(t.TradeID),
		t.Side,
		f(t.Size),
		ts(t.EntryTime),
		ts(t.ExitTime),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.PnL),
		f(t.ReturnPct),
		f(t.Commission),
		t.Tag,
		t.ExitReason,
	})
}

func (j *CSVJournal) RecordEquity(e EquityRecord) error {
	return write(j.equity, []string{
		e.RunID,
		strconv.Itoa(e.Bar),
		ts(e.Time),
		f(e.Cash),
		f(e.Equity),
		f(e.Peak),
		f(e.Position),
	})
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	if j.runs == nil {
		return nil
	}
	return write(j.runs, []string{
		r.RunID,
		ts(r.Created),
		r.Strategy,
		r.Symbol,
		ts(r.Start),
		ts(r.End),
		strconv.Itoa(r.Bars),
		f(r.StartingCash),
		f(r.FinalEquity),
		f(r.ReturnPct),
		f(r.MaxDDPct),
		f(r.Sharpe),
		strconv.Itoa(r.Trades),
		f(r.WinRatePct),
		f(r.ProfitFactor),
		f(r.Commission),
		r.Status,
	})
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.trades, j.equity, j.runs} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
