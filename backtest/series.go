package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/barsim/market"
)

// IndicatorFunc turns full input arrays into one value per bar. Values
// before warmup are NaN. indicators.Func satisfies it.
type IndicatorFunc = func(inputs ...[]float64) []float64

// Series is a read-only view of a column or indicator. During Next only the
// values up to the current bar are visible; At(-1) is the current bar,
// At(-2) the one before it. During Init the whole column is visible so it
// can feed indicators.
type Series struct {
	name   string
	values []float64
	r      *run
	warned bool
}

func (s *Series) Name() string { return s.name }

// Len is the number of visible values.
func (s *Series) Len() int {
	return min(s.r.visible, len(s.values))
}

func (s *Series) value(k int) (float64, bool) {
	n := s.Len()
	if k >= 0 || -k > n {
		return math.NaN(), false
	}
	return s.values[n+k], true
}

// At returns the value k bars back (k = -1 is the current bar). Offsets
// out of range and undefined values return NaN and record a warning the
// first time it happens for this series.
func (s *Series) At(k int) float64 {
	v, ok := s.value(k)
	if !ok || math.IsNaN(v) {
		if !s.warned {
			s.warned = true
			s.r.warn(fmt.Sprintf("%s[%d] is undefined", s.name, k))
		}
		return math.NaN()
	}
	return v
}

// Last is At(-1).
func (s *Series) Last() float64 { return s.At(-1) }

// Defined reports whether At(k) would return a number.
func (s *Series) Defined(k int) bool {
	v, ok := s.value(k)
	return ok && !math.IsNaN(v)
}

// Values returns a copy of the visible values, oldest first.
func (s *Series) Values() []float64 {
	return append([]float64(nil), s.values[:s.Len()]...)
}

// Data exposes the bar table to a strategy, cut at the current bar.
type Data struct {
	Open   *Series
	High   *Series
	Low    *Series
	Close  *Series
	Volume *Series

	r      *run
	extras map[string]*Series
}

func newData(r *run, t *market.BarTable) *Data {
	col := func(name string) *Series {
		vals, _ := t.Column(name)
		return &Series{name: name, values: vals, r: r}
	}
	d := &Data{
		Open:   col(market.ColOpen),
		High:   col(market.ColHigh),
		Low:    col(market.ColLow),
		Close:  col(market.ColClose),
		Volume: col(market.ColVolume),
		r:      r,
		extras: map[string]*Series{},
	}
	for _, name := range t.ExtraColumns() {
		d.extras[name] = col(name)
	}
	return d
}

// Column returns an OHLCV or extra column by name.
func (d *Data) Column(name string) (*Series, bool) {
	switch name {
	case market.ColOpen:
		return d.Open, true
	case market.ColHigh:
		return d.High, true
	case market.ColLow:
		return d.Low, true
	case market.ColClose:
		return d.Close, true
	case market.ColVolume:
		return d.Volume, true
	}
	s, ok := d.extras[name]
	return s, ok
}

func (d *Data) Len() int { return d.Close.Len() }

// Time returns the timestamp k bars back, or the zero time when out of range.
func (d *Data) Time(k int) time.Time {
	n := d.Len()
	if k >= 0 || -k > n {
		return time.Time{}
	}
	return d.r.bars[n+k].Time
}
