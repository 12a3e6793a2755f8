package market

import (
	"fmt"
	"time"
)

// Gap is a run of missing bars between two present ones.
type Gap struct {
	After   time.Time // last bar before the gap
	Missing int       // number of missing intervals
	Kind    string    // weekend, suspicious or minor
}

type GapStats struct {
	Timeframe      time.Duration
	Expected       int // bars a gapless table over the same span would hold
	Present        int
	Missing        int
	GapCount       int
	WeekendGaps    int
	SuspiciousGaps int
	LongestGap     int
	LongestGapKind string
}

// Timeframe returns the most common spacing between consecutive bars, or
// zero for a single-bar table. Ties go to the smaller spacing.
func (t *BarTable) Timeframe() time.Duration {
	counts := map[time.Duration]int{}
	var best time.Duration
	for i := 1; i < len(t.bars); i++ {
		d := t.bars[i].Time.Sub(t.bars[i-1].Time)
		counts[d]++
		if c := counts[d]; c > counts[best] || (c == counts[best] && d < best) {
			best = d
		}
	}
	return best
}

// Gaps lists every place where consecutive bars are further apart than the
// table's timeframe.
func (t *BarTable) Gaps() []Gap {
	tf := t.Timeframe()
	if tf <= 0 {
		return nil
	}

	var gaps []Gap
	for i := 1; i < len(t.bars); i++ {
		prev := t.bars[i-1].Time
		d := t.bars[i].Time.Sub(prev)
		if d <= tf {
			continue
		}
		missing := int(d/tf) - 1
		if missing < 1 {
			continue
		}
		gaps = append(gaps, Gap{
			After:   prev,
			Missing: missing,
			Kind:    classifyGap(prev.Add(tf), time.Duration(missing)*tf),
		})
	}
	return gaps
}

// classifyGap calls a day or more starting Friday to Sunday (UTC) a
// weekend, anything of ten minutes or more suspicious, the rest minor.
func classifyGap(start time.Time, span time.Duration) string {
	if span >= 24*time.Hour {
		switch start.UTC().Weekday() {
		case time.Friday, time.Saturday, time.Sunday:
			return "weekend"
		}
		return "suspicious"
	}
	if span >= 10*time.Minute {
		return "suspicious"
	}
	return "minor"
}

// GapStats summarises Gaps.
func (t *BarTable) GapStats() GapStats {
	s := GapStats{
		Timeframe: t.Timeframe(),
		Present:   len(t.bars),
		Expected:  len(t.bars),
	}
	for _, g := range t.Gaps() {
		s.GapCount++
		s.Missing += g.Missing
		if g.Missing > s.LongestGap {
			s.LongestGap = g.Missing
			s.LongestGapKind = g.Kind
		}
		switch g.Kind {
		case "weekend":
			s.WeekendGaps++
		case "suspicious":
			s.SuspiciousGaps++
		}
	}
	s.Expected += s.Missing
	return s
}

// TimeframeName renders a spacing the way data vendors do: M15, H1, D1, W1.
func TimeframeName(d time.Duration) (string, error) {
	sec := int64(d / time.Second)
	switch {
	case sec <= 0 || time.Duration(sec)*time.Second != d:
		return "", fmt.Errorf("invalid timeframe %s", d)
	case sec < 60:
		return fmt.Sprintf("S%d", sec), nil
	case sec < 3600 && sec%60 == 0:
		return fmt.Sprintf("M%d", sec/60), nil
	case sec < 86400 && sec%3600 == 0:
		return fmt.Sprintf("H%d", sec/3600), nil
	case sec == 7*86400:
		return "W1", nil
	case sec%86400 == 0:
		return fmt.Sprintf("D%d", sec/86400), nil
	}
	return "", fmt.Errorf("cannot name timeframe %s", d)
}

// BarsPerYear is the number of bars of timeframe d in a 365-day year, the
// annualisation factor for markets that trade around the clock.
func BarsPerYear(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(365*24*time.Hour) / float64(d)
}
