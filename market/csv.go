package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadOptions controls how tabular bar files are read.
type LoadOptions struct {
	Symbol string

	// ExtraColumns keeps numeric columns beyond OHLCV (VIX, funding rate,
	// open interest, ...) as extra series. When false such columns are a
	// BadDataError.
	ExtraColumns bool

	// Location is used for timestamps without a zone. Defaults to UTC.
	Location *time.Location
}

var timeHeaders = map[string]bool{
	"time":      true,
	"date":      true,
	"datetime":  true,
	"timestamp": true,
}

var ohlcvHeaders = map[string]string{
	"open":   ColOpen,
	"high":   ColHigh,
	"low":    ColLow,
	"close":  ColClose,
	"volume": ColVolume,
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path string, opts LoadOptions) (*BarTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadCSV(f, opts)
}

// LoadCSV reads a bar file with a header row:
//
//	time,open,high,low,close,volume[,extra...]
//
// Header names are case-insensitive. The datetime column is the first one
// named time, date, datetime or timestamp, or column 0 when none is. Rows must
// be ordered oldest first.
func LoadCSV(r io.Reader, opts LoadOptions) (*BarTable, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &BadDataError{Row: -1, Reason: "empty file"}
	}
	if err != nil {
		return nil, err
	}

	lay, err := parseHeader(header, opts.ExtraColumns)
	if err != nil {
		return nil, err
	}

	var bars []Bar
	extras := make(map[string][]float64, len(lay.extra))

	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			row--
			continue
		}
		if len(rec) != len(header) {
			return nil, &BadDataError{Row: row, Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(rec))}
		}

		ts, err := parseTime(rec[lay.time], loc)
		if err != nil {
			return nil, &BadDataError{Row: row, Column: header[lay.time], Reason: err.Error()}
		}

		var vals [5]float64
		for k, idx := range lay.ohlcv {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
			if err != nil {
				return nil, badRow(row, ts, canonicalOrder[k], "bad number %q", rec[idx])
			}
			vals[k] = v
		}
		bars = append(bars, Bar{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]})

		for name, idx := range lay.extra {
			s := strings.TrimSpace(rec[idx])
			v := math.NaN()
			if s != "" {
				if v, err = strconv.ParseFloat(s, 64); err != nil {
					return nil, badRow(row, ts, name, "bad number %q", s)
				}
			}
			extras[name] = append(extras[name], v)
		}
	}

	t, err := NewBarTable(bars, extras)
	if err != nil {
		return nil, err
	}
	t.Symbol = opts.Symbol
	return t, nil
}

var canonicalOrder = [5]string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}

type csvLayout struct {
	time  int
	ohlcv [5]int
	extra map[string]int
}

func parseHeader(header []string, allowExtra bool) (csvLayout, error) {
	lay := csvLayout{time: -1, extra: map[string]int{}}
	seen := map[string]bool{}
	for k := range lay.ohlcv {
		lay.ohlcv[k] = -1
	}

	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if lay.time < 0 && timeHeaders[strings.ToLower(names[i])] {
			lay.time = i
		}
	}
	if lay.time < 0 && len(names) > 0 {
		if _, ok := ohlcvHeaders[strings.ToLower(names[0])]; !ok {
			lay.time = 0
		}
	}

	for i, name := range names {
		lower := strings.ToLower(name)
		if seen[lower] {
			return lay, &BadDataError{Row: -1, Column: name, Reason: "duplicate column"}
		}
		seen[lower] = true

		if canon, ok := ohlcvHeaders[lower]; ok {
			for k, c := range canonicalOrder {
				if c == canon {
					lay.ohlcv[k] = i
				}
			}
			continue
		}
		if i == lay.time {
			continue
		}
		if !allowExtra {
			return lay, &BadDataError{Row: -1, Column: name, Reason: "unexpected column"}
		}
		lay.extra[name] = i
	}

	if lay.time < 0 {
		return lay, &BadDataError{Row: -1, Reason: "no datetime column"}
	}
	for k, idx := range lay.ohlcv {
		if idx < 0 {
			return lay, &BadDataError{Row: -1, Column: canonicalOrder[k], Reason: "missing column"}
		}
	}
	return lay, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Values past ~2001 in milliseconds are > 1e12.
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCSVFile writes t to path with WriteCSV.
func WriteCSVFile(path string, t *BarTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes t in the layout LoadCSV reads: RFC 3339 UTC times, the
// OHLCV columns and then any extra columns in sorted order. Missing extra
// values are written as empty fields.
func WriteCSV(w io.Writer, t *BarTable) error {
	extra := t.ExtraColumns()
	cols := make([][]float64, len(extra))
	for i, name := range extra {
		cols[i], _ = t.Column(name)
	}

	cw := csv.NewWriter(w)
	header := []string{"time", "open", "high", "low", "close", "volume"}
	if err := cw.Write(append(header, extra...)); err != nil {
		return err
	}

	rec := make([]string, 0, len(header)+len(extra))
	for i := range t.Len() {
		b := t.Bar(i)
		rec = append(rec[:0], b.Time.UTC().Format(time.RFC3339Nano),
			fmtFloat(b.Open), fmtFloat(b.High), fmtFloat(b.Low), fmtFloat(b.Close), fmtFloat(b.Volume))
		for _, col := range cols {
			if math.IsNaN(col[i]) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, fmtFloat(col[i]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
