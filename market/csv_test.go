package market

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV_CaseInsensitiveHeaders(t *testing.T) {
	t.Parallel()

	in := `Date,OPEN,high,Low,close,VOLUME
2024-01-02 00:00:00,10,10,10,10,1
2024-01-02 00:15:00,10,12,9,11,0
`
	tbl, err := LoadCSV(strings.NewReader(in), LoadOptions{Symbol: "BTCUSDT"})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", tbl.Symbol)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 15, 0, 0, time.UTC), tbl.Time(1))
	assert.Equal(t, Bar{Time: tbl.Time(1), Open: 10, High: 12, Low: 9, Close: 11, Volume: 0}, tbl.Bar(1))
}

func TestLoadCSV_TimestampFormats(t *testing.T) {
	t.Parallel()

	in := `timestamp,open,high,low,close,volume
1704153600,1,1,1,1,1
1704154500000,1,1,1,1,1
2024-01-02T00:30:00Z,1,1,1,1,1
`
	tbl, err := LoadCSV(strings.NewReader(in), LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), tbl.Time(0))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 15, 0, 0, time.UTC), tbl.Time(1))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC), tbl.Time(2))
}

func TestLoadCSV_TimeColumnByName(t *testing.T) {
	t.Parallel()

	in := `id,Date,open,high,low,close,volume
7,2024-01-02,10,11,9,10,1
8,2024-01-03,10,12,9,11,1
`
	tbl, err := LoadCSV(strings.NewReader(in), LoadOptions{ExtraColumns: true})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), tbl.Time(1))
	ids, ok := tbl.Column("id")
	require.True(t, ok)
	assert.Equal(t, []float64{7, 8}, ids)

	in = `symbol,date,open,high,low,close,volume
EURUSD,2024-01-02,10,11,9,10,1
`
	_, err = LoadCSV(strings.NewReader(in), LoadOptions{})
	var bad *BadDataError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, "symbol", bad.Column)
	assert.Equal(t, "unexpected column", bad.Reason)

	in = `stamp,open,high,low,close,volume
2024-01-02,10,11,9,10,1
`
	tbl, err = LoadCSV(strings.NewReader(in), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), tbl.Start())
}

func TestLoadCSV_ExtraColumns(t *testing.T) {
	t.Parallel()

	in := `time,open,high,low,close,volume,funding_rate
2024-01-02,10,10,10,10,1,0.0001
2024-01-03,10,10,10,10,1,
`
	_, err := LoadCSV(strings.NewReader(in), LoadOptions{})
	var bad *BadDataError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, "funding_rate", bad.Column)

	tbl, err := LoadCSV(strings.NewReader(in), LoadOptions{ExtraColumns: true})
	require.NoError(t, err)
	fr, ok := tbl.Column("funding_rate")
	require.True(t, ok)
	assert.Equal(t, 0.0001, fr[0])
	assert.True(t, math.IsNaN(fr[1]))
}

func TestLoadCSV_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ``},
		{"missing volume", "time,open,high,low,close\n2024-01-02,1,1,1,1\n"},
		{"duplicate column", "time,open,Open,high,low,close,volume\n"},
		{"bad number", "time,open,high,low,close,volume\n2024-01-02,x,1,1,1,1\n"},
		{"bad time", "time,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"},
		{"out of order", "time,open,high,low,close,volume\n2024-01-03,1,1,1,1,1\n2024-01-02,1,1,1,1,1\n"},
		{"high below open", "time,open,high,low,close,volume\n2024-01-02,2,1,1,1,1\n"},
		{"short row", "time,open,high,low,close,volume\n2024-01-02,1,1,1\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadCSV(strings.NewReader(tt.in), LoadOptions{})
			require.Error(t, err)
			var bad *BadDataError
			assert.True(t, errors.As(err, &bad), "got %T: %v", err, err)
		})
	}
}

func TestLoadCSVFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,open,high,low,close,volume\n2024-01-02,1,2,0.5,1.5,10\n"), 0o644))

	tbl, err := LoadCSVFile(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = LoadCSVFile(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	assert.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	in := `time,open,high,low,close,volume,vix
2024-01-02T00:00:00Z,10,10.5,9.75,10.25,100,13.1
2024-01-02T00:15:00Z,10.25,12,9,11,0,
`
	tbl, err := LoadCSV(strings.NewReader(in), LoadOptions{ExtraColumns: true})
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, `time,open,high,low,close,volume,vix
2024-01-02T00:00:00Z,10,10.5,9.75,10.25,100,13.1
2024-01-02T00:15:00Z,10.25,12,9,11,0,
`, buf.String())

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, WriteCSVFile(path, tbl))
	back, err := LoadCSVFile(path, LoadOptions{ExtraColumns: true})
	require.NoError(t, err)
	assert.Equal(t, tbl.Bars(), back.Bars())
}
