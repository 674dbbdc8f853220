package position

import (
	"fmt"

	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/patterns"
	"futures-signal-engine/internal/strategy"
)

// ExhaustionType labels which exhaustion evidence supports a DCA.
type ExhaustionType string

const (
	ExhaustionNone     ExhaustionType = "none"
	ExhaustionRSI      ExhaustionType = "rsi"
	ExhaustionVolume   ExhaustionType = "volume"
	ExhaustionCombined ExhaustionType = "combined"
)

// DCASignal is the averaging decision: a pure function of the position
// state, current indicators and the strategy document.
type DCASignal struct {
	ShouldDCA       bool           `json:"should_dca"`
	Confidence      float64        `json:"confidence"`
	DCALevel        int            `json:"dca_level"` // level this signal would create
	ExhaustionType  ExhaustionType `json:"exhaustion_type"`
	DrawdownPercent float64        `json:"drawdown_percent"` // adverse move from average, in price %
	Signals         []string       `json:"signals"`
	Warnings        []string       `json:"warnings"`
}

// EvaluateDCA decides whether the position has earned an averaging entry.
// Gates, in order: position open, DCA count below cap, drawdown past the
// (escalating) minimum, exhaustion evidence, optional trend-intact check,
// composite confidence above the configured floor.
func EvaluateDCA(s State, ind *indicator.Set, higherTF *indicator.Set, currentPrice float64, cfg *strategy.Config) DCASignal {
	sig := DCASignal{ExhaustionType: ExhaustionNone, DCALevel: s.DCACount + 1}

	if !s.IsOpen {
		sig.Warnings = append(sig.Warnings, "position not open")
		return sig
	}
	if s.DCACount >= cfg.DCA.MaxCount {
		sig.Warnings = append(sig.Warnings, fmt.Sprintf("dca count %d at maximum %d", s.DCACount, cfg.DCA.MaxCount))
		return sig
	}
	if ind == nil {
		sig.Warnings = append(sig.Warnings, "insufficient indicator data")
		return sig
	}
	if currentPrice <= 0 || s.AvgPrice <= 0 {
		sig.Warnings = append(sig.Warnings, "invalid price")
		return sig
	}

	// Adverse move from the volume-weighted average, in the direction that
	// hurts the position.
	if s.Direction == Long {
		sig.DrawdownPercent = (s.AvgPrice - currentPrice) / s.AvgPrice * 100
	} else {
		sig.DrawdownPercent = (currentPrice - s.AvgPrice) / s.AvgPrice * 100
	}
	if sig.DrawdownPercent < 0 {
		sig.DrawdownPercent = 0
	}

	// Each prior DCA raises the bar for the next one.
	required := cfg.DCA.MinDrawdownPercent + cfg.DCA.StepDrawdownPercent*float64(s.DCACount)
	if sig.DrawdownPercent < required {
		sig.Warnings = append(sig.Warnings,
			fmt.Sprintf("drawdown %.2f%% below required %.2f%%", sig.DrawdownPercent, required))
		return sig
	}

	// Exhaustion evidence: the adverse move should look spent, not healthy.
	rsiExhausted := false
	if s.Direction == Long && ind.RSI <= cfg.DCA.RSIExhaustionLong {
		rsiExhausted = true
		sig.Signals = append(sig.Signals, fmt.Sprintf("rsi %.1f at oversold exhaustion", ind.RSI))
	}
	if s.Direction == Short && ind.RSI >= cfg.DCA.RSIExhaustionShort {
		rsiExhausted = true
		sig.Signals = append(sig.Signals, fmt.Sprintf("rsi %.1f at overbought exhaustion", ind.RSI))
	}

	volumeCapitulation := ind.VolumeRatio >= cfg.DCA.VolumeCapitulation
	if volumeCapitulation {
		sig.Signals = append(sig.Signals, fmt.Sprintf("volume ratio %.2f indicates capitulation", ind.VolumeRatio))
	}

	switch {
	case rsiExhausted && volumeCapitulation:
		sig.ExhaustionType = ExhaustionCombined
	case rsiExhausted:
		sig.ExhaustionType = ExhaustionRSI
	case volumeCapitulation:
		sig.ExhaustionType = ExhaustionVolume
	}

	reversalPattern := false
	for _, p := range ind.Patterns {
		if s.Direction == Long && p.Direction == patterns.DirectionBullish {
			reversalPattern = true
			sig.Signals = append(sig.Signals, fmt.Sprintf("%s pattern supports long", p.Type))
			break
		}
		if s.Direction == Short && p.Direction == patterns.DirectionBearish {
			reversalPattern = true
			sig.Signals = append(sig.Signals, fmt.Sprintf("%s pattern supports short", p.Type))
			break
		}
	}

	// A flipped higher-timeframe trend means the adverse move is probably a
	// reversal, not a pullback.
	if cfg.DCA.RequireTrendIntact && higherTF != nil {
		flipped := (s.Direction == Long && higherTF.Trend == indicator.TrendBearish) ||
			(s.Direction == Short && higherTF.Trend == indicator.TrendBullish)
		if flipped {
			sig.Warnings = append(sig.Warnings, "higher timeframe trend flipped against position")
			return sig
		}
	}

	if sig.ExhaustionType == ExhaustionNone {
		sig.Warnings = append(sig.Warnings, "no exhaustion evidence")
		return sig
	}

	// Composite confidence: drawdown depth earns the base, evidence adds.
	confidence := 40.0
	over := sig.DrawdownPercent - required
	confidence += clampFloat(over*4, 0, 20)
	if rsiExhausted {
		confidence += 15
	}
	if volumeCapitulation {
		confidence += 10
	}
	if reversalPattern {
		confidence += 10
	}
	sig.Confidence = clampFloat(confidence, 0, 95)

	if sig.Confidence < cfg.DCA.MinConfidence {
		sig.Warnings = append(sig.Warnings,
			fmt.Sprintf("confidence %.1f below minimum %.1f", sig.Confidence, cfg.DCA.MinConfidence))
		return sig
	}

	sig.ShouldDCA = true
	return sig
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
