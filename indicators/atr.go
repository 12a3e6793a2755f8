package indicators

import "math"

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR is the Average True Range with Wilder smoothing. The first value is
// the mean of period true ranges starting at bar 1, so it is defined at
// index period.
func ATR(high, low, close []float64, period int) []float64 {
	out := nans(len(close))
	if period <= 0 || len(close) < period+1 {
		return out
	}

	tr := TrueRange(high, low, close)

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < len(close); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// ATRFunc registers ATR over inputs (high, low, close).
func ATRFunc(period int) Func {
	return func(inputs ...[]float64) []float64 {
		return ATR(inputs[0], inputs[1], inputs[2], period)
	}
}
