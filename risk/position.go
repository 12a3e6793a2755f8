package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrZeroStopDistance is returned when entry and stop coincide, which would
// make the risk-based size infinite.
var ErrZeroStopDistance = errors.New("risk: stop distance is zero")

// RoundUnits rounds a requested size to whole units, half to even.
func RoundUnits(size float64) int64 {
	if math.IsNaN(size) || math.IsInf(size, 0) {
		return 0
	}
	return decimal.NewFromFloat(size).RoundBank(0).IntPart()
}

// SizeForRisk returns the number of units whose loss at stop equals
// equity*riskFraction:
//
//	size = round(equity * riskFraction / |entry - stop|)
//
// It is a convenience for strategies; nothing enforces it.
func SizeForRisk(equity, riskFraction, entry, stop float64) (float64, error) {
	if equity <= 0 {
		return 0, fmt.Errorf("risk: equity must be positive, got %g", equity)
	}
	if riskFraction <= 0 || riskFraction > 1 {
		return 0, fmt.Errorf("risk: risk fraction must be in (0, 1], got %g", riskFraction)
	}
	dist := abs(entry - stop)
	if dist == 0 || math.IsNaN(dist) {
		return 0, ErrZeroStopDistance
	}
	return float64(RoundUnits(equity * riskFraction / dist)), nil
}
