package market

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// LoadParquet reads a bar table written by WriteParquet. Rows are expected
// oldest first; the table is validated like any other source.
func LoadParquet(path string, opts LoadOptions) (*BarTable, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, err
	}

	bars := make([]Bar, len(rows))
	for i, r := range rows {
		bars[i] = Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}

	t, err := NewBarTable(bars, nil)
	if err != nil {
		return nil, err
	}
	t.Symbol = opts.Symbol
	return t, nil
}

// WriteParquet writes the OHLCV part of t to path. Extra columns are not
// stored.
func WriteParquet(path string, t *BarTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	records := make([]BarRecord, t.Len())
	for i, b := range t.bars {
		records[i] = BarRecord{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return parquet.WriteFile(path, records)
}
