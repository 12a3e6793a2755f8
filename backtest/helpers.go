package backtest

import "fmt"

// Crossover reports whether a crossed above b on the current bar.
func Crossover(a, b *Series) bool {
	a2, ok1 := a.value(-2)
	a1, ok2 := a.value(-1)
	b2, ok3 := b.value(-2)
	b1, ok4 := b.value(-1)
	if !(ok1 && ok2 && ok3 && ok4) {
		return false
	}
	return a2 < b2 && a1 > b1
}

// Crossunder reports whether a crossed below b on the current bar.
func Crossunder(a, b *Series) bool { return Crossover(b, a) }

// CrossAbove reports whether a crossed above a fixed level.
func CrossAbove(a *Series, level float64) bool {
	a2, ok1 := a.value(-2)
	a1, ok2 := a.value(-1)
	return ok1 && ok2 && a2 < level && a1 > level
}

func CrossBelow(a *Series, level float64) bool {
	a2, ok1 := a.value(-2)
	a1, ok2 := a.value(-1)
	return ok1 && ok2 && a2 > level && a1 < level
}

// TrailingStop ratchets the open position's stop-loss to distance from the
// current close. The stop only moves in the position's favour. It does
// nothing when flat.
func TrailingStop(ctx *Context, distance float64) error {
	if !validPrice(distance) {
		return fmt.Errorf("backtest: trailing distance must be positive, got %g", distance)
	}
	pos := ctx.Position()
	if !pos.IsOpen() {
		return nil
	}

	last := ctx.Bar().Close
	stop := last - float64(pos.Side())*distance
	if stop <= 0 {
		return nil
	}
	if cur := pos.StopLoss(); cur.IsSome() {
		if float64(pos.Side())*(stop-cur.Unwrap()) <= 0 {
			return nil
		}
	}
	return pos.SetStopLoss(stop)
}
