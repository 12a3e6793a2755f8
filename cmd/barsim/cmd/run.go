package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/config"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/logger"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file",
	Long: `Run a backtest using settings from a configuration file.

The config file names the bar file, the strategy and its parameters, the
engine settings and where to journal the results.

Examples:
  barsim run -f backtest.yaml
  barsim run -f backtest.yaml --data data/btc_15m.parquet --strategy breakout`,
	RunE: runRun,
}

var (
	runConfigPath string
	runDataPath   string
	runStrategy   string
	runRunID      string
	runOutput     string
	runProgress   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVar(&runDataPath, "data", "", "override the bar file from the config")
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "override the strategy (its params are reset to defaults)")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "fix the run ID instead of generating one")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "text", "report format (text, yaml)")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "show a progress bar on stderr")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runDataPath != "" {
		cfg.Data.Path = runDataPath
		cfg.Data.Format = ""
	}
	if runStrategy != "" {
		cfg.Strategy.Name = runStrategy
		cfg.Strategy.Params = nil
	}
	if runOutput != "text" && runOutput != "yaml" {
		return fmt.Errorf("unknown output format %q", runOutput)
	}

	log, err := logger.NewWriter(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	tbl, err := loadTable(cfg)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	strat, err := strategies.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	obs := backtest.NewJournalObserver(j)
	obs.Params = strategies.Params(strat)
	obs.SkipEquity = cfg.Journal.SkipEquity

	opts := []backtest.Option{backtest.WithLogger(log), backtest.WithObserver(obs)}
	if runRunID != "" {
		opts = append(opts, backtest.WithRunID(runRunID))
	}
	var progress *progressObserver
	if runProgress {
		progress = newProgressObserver(cmd.ErrOrStderr(), tbl.Len(), "Replaying "+tbl.Symbol)
		opts = append(opts, backtest.WithObserver(progress))
	}
	engine, err := backtest.NewEngine(tbl, cfg.Engine, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, runErr := engine.Run(ctx, strat)
	if progress != nil {
		progress.finish()
	}
	if res != nil {
		if err := printResult(cmd.OutOrStdout(), res, runOutput); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", engine.RunID(), runErr)
	}
	return nil
}

// progressObserver advances a progress bar once per replayed bar.
type progressObserver struct {
	bar *progressbar.ProgressBar
	w   io.Writer
}

func newProgressObserver(w io.Writer, bars int, desc string) *progressObserver {
	bar := progressbar.NewOptions(bars,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	return &progressObserver{bar: bar, w: w}
}

func (p *progressObserver) OnTrade(string, backtest.Trade) error { return nil }

func (p *progressObserver) OnEquity(string, backtest.EquityPoint) error {
	return p.bar.Add(1)
}

func (p *progressObserver) finish() {
	_ = p.bar.Finish()
	fmt.Fprintln(p.w)
}

// loadTable reads the configured bar file. The symbol defaults to the file
// name without its extension.
func loadTable(cfg *config.Config) (*market.BarTable, error) {
	opts := market.LoadOptions{
		Symbol:       cfg.Data.Symbol,
		ExtraColumns: cfg.Data.ExtraColumns,
	}
	if opts.Symbol == "" {
		base := filepath.Base(cfg.Data.Path)
		opts.Symbol = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if cfg.DataFormat() == "parquet" {
		return market.LoadParquet(cfg.Data.Path, opts)
	}
	return market.LoadCSVFile(cfg.Data.Path, opts)
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		j, err := journal.NewCSV(journal.CSVPaths{
			Trades: jc.TradesFile,
			Equity: jc.EquityFile,
			Runs:   jc.RunsFile,
		})
		if err != nil {
			return nil, err
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	return journal.Discard{}, nil
}

func printResult(w io.Writer, res *backtest.Result, format string) error {
	if format == "yaml" {
		out, err := yaml.Marshal(struct {
			RunID    string         `yaml:"run_id"`
			Strategy string         `yaml:"strategy"`
			Symbol   string         `yaml:"symbol"`
			Status   string         `yaml:"status"`
			Stats    backtest.Stats `yaml:"stats"`
			Warnings int            `yaml:"warnings"`
		}{res.RunID, res.Strategy, res.Symbol, string(res.Status), res.Stats, len(res.Warnings)})
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	s := res.Stats
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s on %s", res.Strategy, res.Symbol)))
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("run %s (%s)", res.RunID, res.Status)))

	rows := [][]string{
		{"Start", s.Start.Format("2006-01-02 15:04")},
		{"End", s.End.Format("2006-01-02 15:04")},
		{"Duration", s.Duration.String()},
		{"Bars", fmt.Sprint(s.Bars)},
		{"Exposure Time [%]", num(s.ExposurePct, 2)},
		{"Starting Cash", num(s.StartingCash, 2)},
		{"Equity Final", num(s.FinalEquity, 2)},
		{"Equity Peak", num(s.PeakEquity, 2)},
		{"Return [%]", num(s.ReturnPct, 2)},
		{"Buy & Hold Return [%]", num(s.BuyHoldReturnPct, 2)},
		{"Max. Drawdown [%]", num(s.MaxDrawdownPct, 2)},
		{"Max. Drawdown Bars", fmt.Sprint(s.MaxDrawdownBars)},
		{"Sharpe Ratio", num(s.Sharpe, 3)},
		{"Sortino Ratio", num(s.Sortino, 3)},
		{"# Trades", fmt.Sprint(s.Trades)},
		{"Win Rate [%]", num(s.WinRatePct, 2)},
		{"Best Trade [%]", num(s.BestTradePct, 2)},
		{"Worst Trade [%]", num(s.WorstTradePct, 2)},
		{"Avg. Win", num(s.AvgWin, 2)},
		{"Avg. Loss", num(s.AvgLoss, 2)},
		{"Profit Factor", num(s.ProfitFactor, 3)},
		{"Expectancy", num(s.Expectancy, 2)},
		{"Commission", num(s.TotalCommission, 2)},
	}
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, rows))

	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(w, "%d warnings, first: %s\n", n, res.Warnings[0].Message)
	}
	return nil
}
