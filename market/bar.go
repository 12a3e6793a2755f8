package market

import "time"

// Canonical column names. Loaders accept any case and normalize to these.
const (
	ColOpen   = "Open"
	ColHigh   = "High"
	ColLow    = "Low"
	ColClose  = "Close"
	ColVolume = "Volume"
)

// Bar is one OHLCV record for a fixed time window.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Contains reports whether price lies inside the bar's [Low, High] range.
func (b Bar) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// Clip clamps price into the bar's [Low, High] range.
func (b Bar) Clip(price float64) float64 {
	if price < b.Low {
		return b.Low
	}
	if price > b.High {
		return b.High
	}
	return price
}
