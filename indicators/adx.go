package indicators

import "math"

// ADX is Wilder's Average Directional Index over (high, low, close). It needs
// period bars to seed the smoothed ranges and another period DX values to
// seed the average, so the first value sits at index 2*period-1.
func ADX(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := nans(n)
	if period <= 0 || n < 2*period {
		return out
	}

	tr := TrueRange(high, low, close)

	var trS, pdmS, mdmS float64
	var dxSum, adx float64
	dxCount := 0

	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		var pdm, mdm float64
		if up > down && up > 0 {
			pdm = up
		}
		if down > up && down > 0 {
			mdm = down
		}

		if i <= period {
			trS += tr[i]
			pdmS += pdm
			mdmS += mdm
			if i < period {
				continue
			}
		} else {
			trS = trS - trS/float64(period) + tr[i]
			pdmS = pdmS - pdmS/float64(period) + pdm
			mdmS = mdmS - mdmS/float64(period) + mdm
		}

		dx := directionalIndex(trS, pdmS, mdmS)

		if dxCount < period {
			dxSum += dx
			dxCount++
			if dxCount == period {
				adx = dxSum / float64(period)
				out[i] = adx
			}
			continue
		}
		adx = (adx*float64(period-1) + dx) / float64(period)
		out[i] = adx
	}
	return out
}

// ADXFunc registers ADX over inputs (high, low, close).
func ADXFunc(period int) Func {
	return func(inputs ...[]float64) []float64 {
		return ADX(inputs[0], inputs[1], inputs[2], period)
	}
}

func directionalIndex(tr, pdm, mdm float64) float64 {
	if tr == 0 {
		return 0
	}
	pdi := 100 * pdm / tr
	mdi := 100 * mdm / tr
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}
