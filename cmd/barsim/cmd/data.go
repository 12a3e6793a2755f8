package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/oanda"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect and convert bar files",
	Long: `Work with OHLCV bar files.

Subcommands:
  info    - Validate a bar file and summarise it
  convert - Convert between CSV and Parquet
  fetch   - Download historical candles from OANDA

Examples:
  barsim data info data/eurusd_h1.csv
  barsim data convert data/eurusd_h1.csv data/eurusd_h1.parquet
  barsim data fetch -i EUR_USD -g H1 --from 2024-01-01 --to 2024-07-01 -o data/eurusd_h1.csv`,
}

var dataInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Validate a bar file and summarise it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataInfo,
}

var dataConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert between CSV and Parquet",
	Long: `Read a bar file, validate it and write it in the format given by the
output extension (.csv or .parquet). Extra columns are not stored in
Parquet.`,
	Args: cobra.ExactArgs(2),
	RunE: runDataConvert,
}

var dataFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download historical candles from OANDA",
	Long: `Download every completed candle in [from, to) from the OANDA v20 API
and write it as a bar file. The API token is read from --token or the
OANDA_TOKEN environment variable.`,
	Args: cobra.NoArgs,
	RunE: runDataFetch,
}

var (
	dataExtraColumns bool

	fetchInstrument  string
	fetchGranularity string
	fetchPrice       string
	fetchFrom        string
	fetchTo          string
	fetchOutput      string
	fetchToken       string
	fetchLive        bool
	fetchBaseURL     string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataInfoCmd)
	dataCmd.AddCommand(dataConvertCmd)
	dataCmd.AddCommand(dataFetchCmd)

	dataCmd.PersistentFlags().BoolVar(&dataExtraColumns, "extra", false, "accept columns beyond OHLCV")

	f := dataFetchCmd.Flags()
	f.StringVarP(&fetchInstrument, "instrument", "i", "EUR_USD", "OANDA instrument")
	f.StringVarP(&fetchGranularity, "granularity", "g", "H1", "candle granularity (M1, M5, M15, M30, H1, H4, D, W)")
	f.StringVar(&fetchPrice, "price", "M", "price component (M mid, B bid, A ask)")
	f.StringVar(&fetchFrom, "from", "", "start time, RFC 3339 or YYYY-MM-DD (required)")
	f.StringVar(&fetchTo, "to", "", "end time, exclusive (required)")
	f.StringVarP(&fetchOutput, "output", "o", "", "output .csv or .parquet file (required)")
	f.StringVar(&fetchToken, "token", "", "API token (default $OANDA_TOKEN)")
	f.BoolVar(&fetchLive, "live", false, "use the live environment instead of practice")
	f.StringVar(&fetchBaseURL, "base-url", "", "override the API base URL")
	f.MarkHidden("base-url")
	dataFetchCmd.MarkFlagRequired("from")
	dataFetchCmd.MarkFlagRequired("to")
	dataFetchCmd.MarkFlagRequired("output")
}

func loadBars(path string) (*market.BarTable, error) {
	opts := market.LoadOptions{ExtraColumns: dataExtraColumns}
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return market.LoadParquet(path, opts)
	}
	return market.LoadCSVFile(path, opts)
}

func runDataInfo(cmd *cobra.Command, args []string) error {
	t, err := loadBars(args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}

	first, last := t.Bar(0), t.Bar(t.Len()-1)
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, titleStyle.Render(args[0]))
	rows := [][]string{
		{"Bars", fmt.Sprint(t.Len())},
		{"Start", t.Start().Format("2006-01-02 15:04:05")},
		{"End", t.End().Format("2006-01-02 15:04:05")},
		{"First Close", num(first.Close, 4)},
		{"Last Close", num(last.Close, 4)},
	}
	gs := t.GapStats()
	if name, err := market.TimeframeName(gs.Timeframe); err == nil {
		rows = append(rows,
			[]string{"Timeframe", name},
			[]string{"Bars Per Year", num(market.BarsPerYear(gs.Timeframe), 0)},
		)
	}
	rows = append(rows, []string{"Gaps", fmt.Sprintf("%d (%d missing bars, %d weekend, %d suspicious)",
		gs.GapCount, gs.Missing, gs.WeekendGaps, gs.SuspiciousGaps)})
	if cols := t.ExtraColumns(); len(cols) > 0 {
		rows = append(rows, []string{"Extra Columns", strings.Join(cols, ", ")})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows))
	return nil
}

func writeBars(path string, t *market.BarTable) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return market.WriteParquet(path, t)
	case ".csv":
		return market.WriteCSVFile(path, t)
	}
	return fmt.Errorf("output %s must end in .csv or .parquet", path)
}

func runDataConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	t, err := loadBars(in)
	if err != nil {
		return fmt.Errorf("load %s: %w", in, err)
	}
	if err := writeBars(out, t); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d bars to %s\n", t.Len(), out)
	return nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func runDataFetch(cmd *cobra.Command, args []string) error {
	gran, err := oanda.ParseGranularity(fetchGranularity)
	if err != nil {
		return err
	}
	from, err := parseWhen(fetchFrom)
	if err != nil {
		return fmt.Errorf("bad --from: %w", err)
	}
	to, err := parseWhen(fetchTo)
	if err != nil {
		return fmt.Errorf("bad --to: %w", err)
	}

	token := fetchToken
	if token == "" {
		token = os.Getenv("OANDA_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("an API token is required (--token or OANDA_TOKEN)")
	}

	client := oanda.NewClient(token, !fetchLive)
	if fetchBaseURL != "" {
		client = oanda.NewClientWithURL(token, fetchBaseURL)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Downloading "+fetchInstrument),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)
	t, err := client.FetchBars(cmd.Context(), oanda.FetchRequest{
		Instrument:  fetchInstrument,
		Price:       oanda.PriceComponent(strings.ToUpper(fetchPrice)),
		Granularity: gran,
		From:        from,
		To:          to,
		OnPage:      func(kept int) { _ = bar.Add(kept) },
	})
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := writeBars(fetchOutput, t); err != nil {
		return fmt.Errorf("write %s: %w", fetchOutput, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d %s %s bars to %s\n", t.Len(), fetchInstrument, gran, fetchOutput)
	return nil
}
