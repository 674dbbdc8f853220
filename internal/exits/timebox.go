// Package exits computes composite, weighted exit pressure for an open
// position and derives an exit recommendation from it. The one rule no
// configuration can relax: a position at a loss never produces an exit
// recommendation, no matter how long it has been held.
package exits

import (
	"futures-signal-engine/internal/strategy"
)

// TimePhase buckets hours-in-trade against the timebox schedule.
type TimePhase string

const (
	PhaseNormal  TimePhase = "normal"
	PhaseUrgent  TimePhase = "urgent"  // past urgent_hours
	PhaseOverdue TimePhase = "overdue" // past overdue_hours
)

// Composite pressure floors applied once the timebox phase escalates.
const (
	overduePressureFloor = 90
	urgentPressureFloor  = 50
)

// timeboxPressure evaluates the step table at hoursInTrade with linear
// interpolation between steps. Below the first step the first pressure
// applies; past the last step the last pressure holds. Monotonic for any
// table with ascending hours and non-decreasing pressures.
func timeboxPressure(hoursInTrade float64, steps []strategy.TimeboxStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	if hoursInTrade <= steps[0].Hours {
		return steps[0].Pressure
	}
	for i := 1; i < len(steps); i++ {
		if hoursInTrade <= steps[i].Hours {
			prev, cur := steps[i-1], steps[i]
			span := cur.Hours - prev.Hours
			if span <= 0 {
				return cur.Pressure
			}
			frac := (hoursInTrade - prev.Hours) / span
			return prev.Pressure + (cur.Pressure-prev.Pressure)*frac
		}
	}
	return steps[len(steps)-1].Pressure
}

// timePhase classifies hours-in-trade against the schedule's escalation
// thresholds.
func timePhase(hoursInTrade float64, tb strategy.TimeboxConfig) TimePhase {
	switch {
	case tb.OverdueHours > 0 && hoursInTrade >= tb.OverdueHours:
		return PhaseOverdue
	case tb.UrgentHours > 0 && hoursInTrade >= tb.UrgentHours:
		return PhaseUrgent
	default:
		return PhaseNormal
	}
}
