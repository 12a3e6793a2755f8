package market

import (
	"math"
	"sort"
	"time"
)

// BarTable is an ordered, validated sequence of bars, oldest first, plus
// optional extra numeric columns aligned to the bars.
//
// A BarTable is read-only once built. All accessors return copies, so one
// table can be shared by engines running concurrently.
type BarTable struct {
	Symbol string

	bars   []Bar
	extras map[string][]float64
	names  []string
}

// NewBarTable validates bars and extras and returns the table. Extra columns
// must have one value per bar; NaN is allowed there (missing observation)
// but not in OHLCV.
func NewBarTable(bars []Bar, extras map[string][]float64) (*BarTable, error) {
	t := &BarTable{
		bars:   append([]Bar(nil), bars...),
		extras: make(map[string][]float64, len(extras)),
	}
	for name, vals := range extras {
		t.extras[name] = append([]float64(nil), vals...)
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the data contract: strictly increasing timestamps, finite
// non-negative prices and volume, and Low <= min(Open,Close) <= max(Open,Close) <= High.
func (t *BarTable) Validate() error {
	if len(t.bars) == 0 {
		return &BadDataError{Row: -1, Reason: "no bars"}
	}

	for i, b := range t.bars {
		for _, f := range []struct {
			col string
			v   float64
		}{
			{ColOpen, b.Open}, {ColHigh, b.High}, {ColLow, b.Low}, {ColClose, b.Close}, {ColVolume, b.Volume},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return badRow(i, b.Time, f.col, "value is not finite")
			}
			if f.v < 0 {
				return badRow(i, b.Time, f.col, "negative value %g", f.v)
			}
		}

		if b.Low > math.Min(b.Open, b.Close) {
			return badRow(i, b.Time, ColLow, "low %g above min(open, close)", b.Low)
		}
		if b.High < math.Max(b.Open, b.Close) {
			return badRow(i, b.Time, ColHigh, "high %g below max(open, close)", b.High)
		}

		if i == 0 {
			continue
		}
		prev := t.bars[i-1].Time
		if b.Time.Equal(prev) {
			return badRow(i, b.Time, "", "duplicate timestamp")
		}
		if b.Time.Before(prev) {
			return badRow(i, b.Time, "", "timestamp not increasing (previous %s)", prev.Format(time.RFC3339))
		}
	}

	for _, name := range t.names {
		if n := len(t.extras[name]); n != len(t.bars) {
			return &BadDataError{Row: -1, Column: name, Reason: "length mismatch"}
		}
	}
	return nil
}

func (t *BarTable) Len() int { return len(t.bars) }

func (t *BarTable) Bar(i int) Bar { return t.bars[i] }

func (t *BarTable) Time(i int) time.Time { return t.bars[i].Time }

// Start returns the first bar time.
func (t *BarTable) Start() time.Time { return t.bars[0].Time }

// End returns the last bar time.
func (t *BarTable) End() time.Time { return t.bars[len(t.bars)-1].Time }

// Bars returns a copy of the bars.
func (t *BarTable) Bars() []Bar { return append([]Bar(nil), t.bars...) }

func (t *BarTable) Opens() []float64   { return t.pluck(func(b Bar) float64 { return b.Open }) }
func (t *BarTable) Highs() []float64   { return t.pluck(func(b Bar) float64 { return b.High }) }
func (t *BarTable) Lows() []float64    { return t.pluck(func(b Bar) float64 { return b.Low }) }
func (t *BarTable) Closes() []float64  { return t.pluck(func(b Bar) float64 { return b.Close }) }
func (t *BarTable) Volumes() []float64 { return t.pluck(func(b Bar) float64 { return b.Volume }) }

// Column returns a copy of the named column. OHLCV names resolve to the price
// arrays; anything else is looked up among the extra columns.
func (t *BarTable) Column(name string) ([]float64, bool) {
	switch name {
	case ColOpen:
		return t.Opens(), true
	case ColHigh:
		return t.Highs(), true
	case ColLow:
		return t.Lows(), true
	case ColClose:
		return t.Closes(), true
	case ColVolume:
		return t.Volumes(), true
	}
	vals, ok := t.extras[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), vals...), true
}

// ExtraColumns lists extra column names in sorted order.
func (t *BarTable) ExtraColumns() []string { return append([]string(nil), t.names...) }

func (t *BarTable) pluck(f func(Bar) float64) []float64 {
	out := make([]float64, len(t.bars))
	for i, b := range t.bars {
		out[i] = f(b)
	}
	return out
}
