package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query backtest journal data",
	Long: `Query and display runs recorded in a SQLite journal.

Subcommands:
  runs    - List recorded runs, newest first
  show    - Show one run and its trades
  delete  - Remove a run with its trades and equity

Examples:
  barsim journal runs --strategy ema-cross
  barsim journal show 01J9Z6M4Q8...
  barsim journal delete 01J9Z6M4Q8...`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDelete,
}

var (
	journalDBPath   string
	journalStrategy string
	journalSymbol   string
	journalLimit    uint64
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalDeleteCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./barsim.sqlite", "path to SQLite journal DB")
	journalRunsCmd.Flags().StringVar(&journalStrategy, "strategy", "", "only runs of this strategy")
	journalRunsCmd.Flags().StringVar(&journalSymbol, "symbol", "", "only runs on this symbol")
	journalRunsCmd.Flags().Uint64VarP(&journalLimit, "limit", "n", 20, "maximum runs to list (0 for all)")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns(journal.RunFilter{
		Strategy: journalStrategy,
		Symbol:   journalSymbol,
		Limit:    journalLimit,
	})
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			r.Created.Local().Format("2006-01-02 15:04"),
			r.Strategy,
			r.Symbol,
			fmt.Sprint(r.Trades),
			num(r.ReturnPct, 2),
			num(r.MaxDDPct, 2),
			num(r.Sharpe, 2),
			r.Status,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Run", "Created", "Strategy", "Symbol", "Trades", "Return %", "Max DD %", "Sharpe", "Status"}, rows))
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	run, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	trades, err := j.ListTrades(run.RunID)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s on %s", run.Strategy, run.Symbol)))
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("run %s (%s)", run.RunID, run.Status)))
	if run.Params != "" {
		fmt.Fprint(w, faintStyle.Render(run.Params))
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, [][]string{
		{"Period", run.Start.Format("2006-01-02") + " .. " + run.End.Format("2006-01-02")},
		{"Bars", fmt.Sprint(run.Bars)},
		{"Equity Final", num(run.FinalEquity, 2)},
		{"Return [%]", num(run.ReturnPct, 2)},
		{"Max. Drawdown [%]", num(run.MaxDDPct, 2)},
		{"Win Rate [%]", num(run.WinRatePct, 2)},
		{"Profit Factor", num(run.ProfitFactor, 3)},
	}))

	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			fmt.Sprint(t.TradeID),
			t.Side,
			num(t.Size, 0),
			t.EntryTime.Format("2006-01-02 15:04"),
			num(t.EntryPrice, 4),
			t.ExitTime.Format("2006-01-02 15:04"),
			num(t.ExitPrice, 4),
			num(t.PnL, 2),
			t.ExitReason,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Side", "Size", "Entry", "Price", "Exit", "Price", "PnL", "Reason"}, rows))
	return nil
}

func runJournalDelete(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	if err := j.DeleteRun(args[0]); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", args[0])
	return nil
}
