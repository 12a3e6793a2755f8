package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundUnits_HalfToEven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int64
	}{
		{0.5, 0},
		{1.5, 2},
		{2.5, 2},
		{3.5, 4},
		{2.4999, 2},
		{2.6, 3},
		{-1.5, -2},
		{199.99999, 200},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundUnits(tt.in), "RoundUnits(%v)", tt.in)
	}
}

func TestSizeForRisk(t *testing.T) {
	t.Parallel()

	size, err := SizeForRisk(100000, 0.01, 100, 95)
	require.NoError(t, err)
	assert.Equal(t, 200.0, size)

	// Stop above entry (short) sizes the same way.
	size, err = SizeForRisk(100000, 0.01, 95, 100)
	require.NoError(t, err)
	assert.Equal(t, 200.0, size)
}

func TestSizeForRisk_Errors(t *testing.T) {
	t.Parallel()

	_, err := SizeForRisk(100000, 0.01, 100, 100)
	assert.True(t, errors.Is(err, ErrZeroStopDistance))

	_, err = SizeForRisk(0, 0.01, 100, 95)
	assert.Error(t, err)

	_, err = SizeForRisk(1000, 0, 100, 95)
	assert.Error(t, err)

	_, err = SizeForRisk(1000, 1.5, 100, 95)
	assert.Error(t, err)
}

func TestRRAndPlannedRisk(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, RR(100, 95, 110), 1e-12)
	assert.Equal(t, 0.0, RR(100, 100, 110))
	assert.InDelta(t, 1000.0, PlannedRisk(200, 100, 95), 1e-12)
	assert.InDelta(t, 0.01, RiskPct(1000, 100000), 1e-12)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRiskPct: 0.01, MinRR: 1.5}

	d := Evaluate(p, TradeIntent{Units: 200, Entry: 100, Stop: 95, TakeProfit: 110}, 100000)
	assert.True(t, d.Allowed)
	assert.InDelta(t, 2.0, d.PlannedRR, 1e-12)

	d = Evaluate(p, TradeIntent{Units: 400, Entry: 100, Stop: 95, TakeProfit: 105}, 100000)
	assert.False(t, d.Allowed)
	codes := []string{}
	for _, v := range d.Violations {
		codes = append(codes, v.Code)
	}
	assert.ElementsMatch(t, []string{"RISK_TOO_HIGH", "RR_TOO_LOW"}, codes)

	d = Evaluate(p, TradeIntent{Units: 0, Entry: 100, Stop: 95}, 100000)
	assert.False(t, d.Allowed)
	assert.Equal(t, "NO_UNITS", d.Violations[0].Code)
}
