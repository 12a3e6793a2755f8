package indicators

import "math"

// StdDev is the population standard deviation over a rolling window.
func StdDev(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 {
		return out
	}
	mean := SMA(values, period)
	for i := period - 1; i < len(values); i++ {
		ss := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out
}

// Highest is the rolling maximum over period values.
func Highest(values []float64, period int) []float64 {
	return rolling(values, period, math.Max)
}

// Lowest is the rolling minimum over period values.
func Lowest(values []float64, period int) []float64 {
	return rolling(values, period, math.Min)
}

func rolling(values []float64, period int, pick func(a, b float64) float64) []float64 {
	out := nans(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		v := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			v = pick(v, values[j])
		}
		out[i] = v
	}
	return out
}
