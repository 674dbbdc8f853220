package exits

import (
	"fmt"
	"time"

	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/position"
	"futures-signal-engine/internal/strategy"
)

// Urgency grades how quickly an exit should be acted on.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencySoon      Urgency = "soon"
	UrgencyConsider  Urgency = "consider"
	UrgencyMonitor   Urgency = "monitor"
)

// PressureSource is one independent contributor to the composite pressure.
type PressureSource struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"` // 0-100
	Weight float64 `json:"weight"`
	Detail string  `json:"detail"`
}

// Signal is the exit decision for one tick: a pure function of the position
// state, indicators, clock and strategy document.
type Signal struct {
	ShouldExit           bool             `json:"should_exit"`
	Urgency              Urgency          `json:"urgency"`
	Reason               string           `json:"reason"`
	Confidence           float64          `json:"confidence"`
	Pressures            []PressureSource `json:"pressures"`
	TotalPressure        float64          `json:"total_pressure"` // 0-100
	TimePhase            TimePhase        `json:"time_phase"`
	SuggestedExitPercent float64          `json:"suggested_exit_percent"`
}

// Params bundles the evaluation inputs. RegimeTimeboxWeight scales the
// timebox source's weight per the current market regime (1.0 when no regime
// analysis is available).
type Params struct {
	State               position.State
	Indicators          *indicator.Set // position's favorable timeframe
	HigherTF            *indicator.Set // trend timeframe, may be nil
	Now                 time.Time
	RegimeTimeboxWeight float64
}

// Evaluate computes the composite exit pressure and the exit decision.
func Evaluate(p Params, cfg *strategy.Config) Signal {
	sig := Signal{Urgency: UrgencyMonitor}
	s := p.State
	if !s.IsOpen {
		sig.Reason = "position not open"
		return sig
	}

	hours := float64(s.TimeInTradeMs) / float64(time.Hour.Milliseconds())
	sig.TimePhase = timePhase(hours, cfg.Timebox)
	inProfit := s.UnrealizedPnL > 0

	weights := cfg.Exit.Weights
	tbWeight := weights.Timebox
	if p.RegimeTimeboxWeight > 0 {
		tbWeight *= p.RegimeTimeboxWeight
	}

	// Timebox pressure is always active; the remaining sources contribute
	// only when their condition holds.
	sig.Pressures = append(sig.Pressures, PressureSource{
		Name:   "timebox",
		Value:  timeboxPressure(hours, cfg.Timebox.Steps),
		Weight: tbWeight,
		Detail: fmt.Sprintf("%.1fh in trade (%s)", hours, sig.TimePhase),
	})

	if p.Indicators != nil {
		ind := p.Indicators
		if v, detail := momentumExhaustion(s.Direction, ind); v > 0 {
			sig.Pressures = append(sig.Pressures, PressureSource{
				Name: "momentum", Value: v, Weight: weights.Momentum, Detail: detail,
			})
		}
		if inProfit && ind.VolumeRatio < 0.7 {
			v := (0.7 - ind.VolumeRatio) / 0.7 * 100
			sig.Pressures = append(sig.Pressures, PressureSource{
				Name:   "volume_dry_up",
				Value:  clamp(v, 0, 100),
				Weight: weights.VolumeDryUp,
				Detail: fmt.Sprintf("volume ratio %.2f while in profit", ind.VolumeRatio),
			})
		}
		if v, detail := momentumFading(ind, cfg.Signals.MACDDeadZonePercent); v > 0 {
			sig.Pressures = append(sig.Pressures, PressureSource{
				Name: "momentum_fading", Value: v, Weight: weights.MomentumFading, Detail: detail,
			})
		}
	}

	if v, detail := antiGreedPressure(s, cfg.AntiGreed); v > 0 {
		sig.Pressures = append(sig.Pressures, PressureSource{
			Name: "anti_greed", Value: v, Weight: weights.AntiGreed, Detail: detail,
		})
	}

	if p.HigherTF != nil {
		if v, detail := trendReversal(s.Direction, p.HigherTF); v > 0 {
			sig.Pressures = append(sig.Pressures, PressureSource{
				Name: "trend_reversal", Value: v, Weight: weights.TrendReversal, Detail: detail,
			})
		}
	}

	// Composite: weighted average of active sources.
	var weightedSum, weightSum float64
	for _, src := range sig.Pressures {
		if src.Value <= 0 || src.Weight <= 0 {
			continue
		}
		weightedSum += src.Value * src.Weight
		weightSum += src.Weight
	}
	if weightSum > 0 {
		sig.TotalPressure = weightedSum / weightSum
	}

	switch sig.TimePhase {
	case PhaseOverdue:
		if sig.TotalPressure < overduePressureFloor {
			sig.TotalPressure = overduePressureFloor
		}
	case PhaseUrgent:
		if sig.TotalPressure < urgentPressureFloor {
			sig.TotalPressure = urgentPressureFloor
		}
	}

	sig.Urgency = deriveUrgency(sig.TimePhase, inProfit, sig.TotalPressure, cfg.Exit.PressureThreshold)
	sig.SuggestedExitPercent = suggestedExitPercent(sig.TotalPressure, cfg.Exit.PressureThreshold)
	sig.Confidence = clamp(sig.TotalPressure, 5, 95)

	// Hard guard, never relaxed by configuration: exits only fire in profit,
	// past the minimum-profit floor, with pressure over threshold.
	if inProfit &&
		s.UnrealizedPnLPercent >= cfg.Exit.MinProfitPercent &&
		sig.TotalPressure >= cfg.Exit.PressureThreshold {
		sig.ShouldExit = true
		sig.Reason = dominantReason(sig.Pressures)
	} else {
		switch {
		case !inProfit:
			sig.Reason = "position not in profit"
		case s.UnrealizedPnLPercent < cfg.Exit.MinProfitPercent:
			sig.Reason = fmt.Sprintf("pnl %.2f%% below minimum profit floor %.2f%%",
				s.UnrealizedPnLPercent, cfg.Exit.MinProfitPercent)
		default:
			sig.Reason = fmt.Sprintf("pressure %.1f below threshold %.1f",
				sig.TotalPressure, cfg.Exit.PressureThreshold)
		}
	}
	return sig
}

// momentumExhaustion scores oscillator exhaustion against the position's
// favorable direction: a long living on an overbought RSI is running out of
// buyers.
func momentumExhaustion(dir position.Direction, ind *indicator.Set) (float64, string) {
	if dir == position.Long {
		if ind.RSI >= 70 {
			v := clamp((ind.RSI-70)/30*100, 20, 100)
			return v, fmt.Sprintf("rsi %.1f overbought against long", ind.RSI)
		}
		if ind.MACD.Histogram < 0 {
			return 40, "macd histogram turned negative against long"
		}
	} else {
		if ind.RSI <= 30 {
			v := clamp((30-ind.RSI)/30*100, 20, 100)
			return v, fmt.Sprintf("rsi %.1f oversold against short", ind.RSI)
		}
		if ind.MACD.Histogram > 0 {
			return 40, "macd histogram turned positive against short"
		}
	}
	return 0, ""
}

// momentumFading looks for fading momentum: histogram converging to zero,
// RSI drifting back to neutral, EMA-20 slope flattening. Needs at least two
// of the three to register.
func momentumFading(ind *indicator.Set, deadZonePercent float64) (float64, string) {
	count := 0

	deadZone := ind.Price * deadZonePercent / 100
	histConverging := deadZone > 0 && abs(ind.MACD.Histogram) < deadZone
	if histConverging {
		count++
	}
	rsiNeutral := ind.RSI >= 45 && ind.RSI <= 55
	if rsiNeutral {
		count++
	}
	slopeFlat := abs(ind.EMA20Slope) < 0.05
	if slopeFlat {
		count++
	}

	if count < 2 {
		return 0, ""
	}
	v := 50.0
	if count == 3 {
		v = 75
	}
	return v, fmt.Sprintf("%d of 3 fading signals (hist=%v rsi=%v slope=%v)",
		count, histConverging, rsiNeutral, slopeFlat)
}

// antiGreedPressure scores the retrace from the high-water mark, gated by
// minimum HWM and minimum current P&L so small positions don't trigger on
// noise.
func antiGreedPressure(s position.State, cfg strategy.AntiGreedConfig) (float64, string) {
	if s.TotalMarginUsed <= 0 || s.HighWaterMarkPnL <= 0 {
		return 0, ""
	}
	hwmPercent := s.HighWaterMarkPnL / s.TotalMarginUsed * 100
	if hwmPercent < cfg.MinHWMPercent {
		return 0, ""
	}
	if s.UnrealizedPnLPercent < cfg.MinPnLPercent {
		return 0, ""
	}
	if s.DrawdownFromHWM <= 0 {
		return 0, ""
	}
	v := s.DrawdownFromHWM / cfg.DrawdownTriggerPercent * 100
	return clamp(v, 0, 100), fmt.Sprintf("%.1f%% retraced from hwm %.2f%%", s.DrawdownFromHWM, hwmPercent)
}

// trendReversal scores a higher-timeframe trend flip against the position.
func trendReversal(dir position.Direction, higher *indicator.Set) (float64, string) {
	flipped := (dir == position.Long && higher.Trend == indicator.TrendBearish) ||
		(dir == position.Short && higher.Trend == indicator.TrendBullish)
	if flipped {
		return 80, fmt.Sprintf("higher timeframe trend %s against position", higher.Trend)
	}
	if higher.EMAAlignment == indicator.AlignmentMixed && higher.Trend == indicator.TrendNeutral {
		return 40, "higher timeframe structure deteriorated to neutral"
	}
	return 0, ""
}

// deriveUrgency is the fixed (time phase, profit, pressure) lookup.
// Pressure at or above 90 always forces immediate.
func deriveUrgency(phase TimePhase, inProfit bool, pressure, threshold float64) Urgency {
	if pressure >= 90 {
		return UrgencyImmediate
	}
	switch phase {
	case PhaseOverdue:
		return UrgencyImmediate
	case PhaseUrgent:
		if pressure >= threshold {
			return UrgencySoon
		}
		return UrgencyConsider
	default:
		switch {
		case pressure >= threshold && inProfit:
			return UrgencySoon
		case pressure >= threshold:
			return UrgencyConsider
		case pressure >= 50:
			return UrgencyConsider
		default:
			return UrgencyMonitor
		}
	}
}

func suggestedExitPercent(pressure, threshold float64) float64 {
	switch {
	case pressure >= 90:
		return 100
	case pressure >= 75:
		return 50
	case pressure >= threshold:
		return 30
	default:
		return 0
	}
}

func dominantReason(sources []PressureSource) string {
	best := PressureSource{}
	for _, src := range sources {
		if src.Value*src.Weight > best.Value*best.Weight {
			best = src
		}
	}
	if best.Name == "" {
		return "composite exit pressure over threshold"
	}
	return best.Name + ": " + best.Detail
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
