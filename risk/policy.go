package risk

import "fmt"

// Policy holds pre-trade limits a strategy can check its intents against.
// The engine itself does not apply it.
type Policy struct {
	MaxRiskPct float64 // 0.01
	MinRR      float64 // 1.5
}

type TradeIntent struct {
	Units      float64
	Entry      float64
	Stop       float64
	TakeProfit float64
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate checks intent against p for an account with the given equity.
func Evaluate(p Policy, intent TradeIntent, equity float64) Decision {
	d := Decision{Allowed: true}

	if intent.Stop == 0 || intent.Entry == 0 {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}
	if intent.Units <= 0 {
		d.add("NO_UNITS", "units must be positive")
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Units, intent.Entry, intent.Stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, equity)

	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
				100*d.PlannedRiskPct, 100*p.MaxRiskPct))
	}

	if intent.TakeProfit != 0 {
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
		if d.PlannedRR < p.MinRR {
			d.add("RR_TOO_LOW",
				fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
		}
	}
	return d
}
