package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/barsim/config"
)

// execute runs the root command with args after resetting flag state left
// over from earlier tests.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	err := executeTo(t, &buf, &buf, args...)
	return buf.String(), err
}

// executeTo is execute with separate stdout and stderr writers.
func executeTo(t *testing.T, stdout, stderr *bytes.Buffer, args ...string) error {
	t.Helper()

	runDataPath, runStrategy, runRunID, runOutput = "", "", "", "text"
	journalStrategy, journalSymbol, journalLimit = "", "", 20
	dataExtraColumns = false
	configSchemaStrategy = ""
	runProgress = false
	fetchInstrument, fetchGranularity, fetchPrice = "EUR_USD", "H1", "M"
	fetchToken, fetchBaseURL, fetchLive = "", "", false

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeTestBars(t *testing.T, dir string, n int) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := 100.0
	for i := range n {
		x := float64(i)
		c := 100 + 10*math.Sin(x/7) + 3*math.Sin(x/3.1)
		h := math.Max(prev, c) + 0.5
		l := math.Min(prev, c) - 0.5
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,%d\n",
			start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), prev, h, l, c, 1000+i)
		prev = c
	}

	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeConfig(t *testing.T, dir string, mutate func(*config.Config)) string {
	t.Helper()

	cfg := config.Default()
	cfg.Data.Path = writeTestBars(t, dir, 300)
	cfg.Strategy.Params = map[string]any{"fast": 5, "slow": 15}
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, "backtest.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "barsim version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bt.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Strategy: sma-cross")
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"barsim-config"`)
	assert.Contains(t, out, `"bars_per_year"`)

	out, err = execute(t, "config", "schema", "--strategy", "breakout")
	require.NoError(t, err)
	assert.Contains(t, out, `"trail_atr"`)

	_, err = execute(t, "config", "schema", "-s", "nope")
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestConfigValidateRejectsUnknownStrategy(t *testing.T) {
	path := writeConfig(t, t.TempDir(), func(c *config.Config) {
		c.Strategy.Name = "martingale"
	})

	_, err := execute(t, "config", "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestRunJournalsToSQLite(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.sqlite")
	path := writeConfig(t, dir, func(c *config.Config) {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = db
	})

	out, err := execute(t, "run", "-f", path, "--run-id", "RUN-A")
	require.NoError(t, err)
	assert.Contains(t, out, "sma-cross on bars")
	assert.Contains(t, out, "Return [%]")
	assert.Contains(t, out, "run RUN-A (complete)")

	out, err = execute(t, "journal", "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN-A")
	assert.Contains(t, out, "sma-cross")

	out, err = execute(t, "journal", "show", "RUN-A", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "fast: 5")
	assert.Contains(t, out, "long")

	out, err = execute(t, "journal", "runs", "--db", db, "--strategy", "breakout")
	require.NoError(t, err)
	assert.NotContains(t, out, "RUN-A")

	_, err = execute(t, "journal", "delete", "RUN-A", "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "journal", "show", "RUN-A", "--db", db)
	require.Error(t, err)
}

func TestRunYAMLReport(t *testing.T) {
	path := writeConfig(t, t.TempDir(), nil)

	out, err := execute(t, "run", "-f", path, "--strategy", "noop", "-o", "yaml")
	require.NoError(t, err)

	var report struct {
		Strategy string `yaml:"strategy"`
		Status   string `yaml:"status"`
		Stats    struct {
			Bars        int     `yaml:"bars"`
			Trades      int     `yaml:"trades"`
			FinalEquity float64 `yaml:"final_equity"`
		} `yaml:"stats"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "noop", report.Strategy)
	assert.Equal(t, "complete", report.Status)
	assert.Equal(t, 300, report.Stats.Bars)
	assert.Zero(t, report.Stats.Trades)
	assert.InDelta(t, 1e6, report.Stats.FinalEquity, 1e-6)
}

func TestRunYAMLReportWithInfoLogs(t *testing.T) {
	path := writeConfig(t, t.TempDir(), func(c *config.Config) {
		c.Log.Level = "info"
	})

	var stdout, stderr bytes.Buffer
	err := executeTo(t, &stdout, &stderr, "run", "-f", path, "--strategy", "noop", "-o", "yaml")
	require.NoError(t, err)

	var report struct {
		RunID  string `yaml:"run_id"`
		Status string `yaml:"status"`
	}
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "complete", report.Status)
	assert.NotContains(t, stdout.String(), `"level"`)

	assert.Contains(t, stderr.String(), "backtest started")
	assert.Contains(t, stderr.String(), "backtest finished")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, nil)

	_, err := execute(t, "run", "-f", path, "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = execute(t, "run", "-f", path, "--data", filepath.Join(dir, "missing.csv"))
	assert.ErrorContains(t, err, "load data")

	_, err = execute(t, "run", "-f", filepath.Join(dir, "nope.yaml"))
	assert.ErrorContains(t, err, "load config")
}

func TestDataConvertAndInfo(t *testing.T) {
	dir := t.TempDir()
	in := writeTestBars(t, dir, 120)
	out := filepath.Join(dir, "bars.parquet")

	msg, err := execute(t, "data", "convert", in, out)
	require.NoError(t, err)
	assert.Contains(t, msg, "Wrote 120 bars")

	msg, err = execute(t, "data", "info", out)
	require.NoError(t, err)
	assert.Contains(t, msg, "120")
	assert.Contains(t, msg, "2024-01-01 00:00:00")

	back := filepath.Join(dir, "back.csv")
	_, err = execute(t, "data", "convert", out, back)
	require.NoError(t, err)
	raw, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "time,open,high,low,close,volume\n2024-01-01T00:00:00Z,"))

	_, err = execute(t, "data", "convert", in, filepath.Join(dir, "bars.csv2"))
	assert.ErrorContains(t, err, ".parquet")
}

func TestDataFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "H4", r.URL.Query().Get("granularity"))

		from, _ := time.Parse(time.RFC3339Nano, r.URL.Query().Get("from"))
		type ohlc struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		}
		type candle struct {
			Complete bool   `json:"complete"`
			Volume   int    `json:"volume"`
			Time     string `json:"time"`
			Mid      ohlc   `json:"mid"`
		}
		var out []candle
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range 12 {
			ts := start.Add(time.Duration(i) * 4 * time.Hour)
			if ts.Before(from) {
				continue
			}
			out = append(out, candle{true, 10, ts.Format(time.RFC3339), ohlc{"1.1", "1.2", "1.0", "1.15"}})
		}
		json.NewEncoder(w).Encode(map[string]any{"candles": out})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "eurusd.csv")
	msg, err := execute(t, "data", "fetch", "-g", "h4", "--from", "2024-01-01", "--to", "2024-01-02",
		"-o", path, "--token", "secret", "--base-url", server.URL)
	require.NoError(t, err)
	assert.Contains(t, msg, "Wrote 6 EUR_USD H4 bars")

	msg, err = execute(t, "data", "info", path)
	require.NoError(t, err)
	assert.Contains(t, msg, "2024-01-01 20:00:00")
	assert.Contains(t, msg, "H4")
	assert.Contains(t, msg, "0 (0 missing bars")

	t.Setenv("OANDA_TOKEN", "")
	_, err = execute(t, "data", "fetch", "--from", "2024-01-01", "--to", "2024-01-02", "-o", path)
	assert.ErrorContains(t, err, "API token is required")
}

func TestRunParquetData(t *testing.T) {
	dir := t.TempDir()
	pq := filepath.Join(dir, "eurusd.parquet")
	_, err := execute(t, "data", "convert", writeTestBars(t, dir, 200), pq)
	require.NoError(t, err)

	path := writeConfig(t, dir, nil)
	out, err := execute(t, "run", "-f", path, "--data", pq, "--strategy", "buy-hold", "--progress")
	require.NoError(t, err)
	assert.Contains(t, out, "buy-hold on eurusd")
	assert.Contains(t, out, "200/200")
}
