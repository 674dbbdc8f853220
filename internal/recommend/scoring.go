package recommend

import (
	"fmt"

	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/patterns"
)

// Side is the direction under evaluation.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// EntryContext classifies what kind of entry the 15m/1h picture offers.
// Volume expectations differ per context: a pullback is allowed to happen
// on quiet volume, a breakout is not.
type EntryContext string

const (
	ContextPullback     EntryContext = "pullback"
	ContextBreakout     EntryContext = "breakout"
	ContextContinuation EntryContext = "continuation"
)

// setupScore1h grades the 1h setup on a five-factor rubric, two points per
// factor, ten total.
func setupScore1h(side Side, ind *indicator.Set) (float64, []string) {
	score := 0.0
	var notes []string

	// Factor 1: 1h trend agrees.
	if (side == SideLong && ind.Trend == indicator.TrendBullish) ||
		(side == SideShort && ind.Trend == indicator.TrendBearish) {
		score += 2
		notes = append(notes, "1h trend aligned")
	} else if ind.Trend == indicator.TrendNeutral {
		score += 1
	}

	// Factor 2: price near the 1h EMA20 (a workable pullback, not a chase).
	dist := ind.PriceVsEMA20
	if dist < 0 {
		dist = -dist
	}
	if dist <= 1.0 {
		score += 2
		notes = append(notes, "price within 1% of ema20")
	} else if dist <= 2.5 {
		score += 1
	}

	// Factor 3: RSI in the healthy band for the side.
	if side == SideLong && ind.RSI >= 35 && ind.RSI <= 65 {
		score += 2
	} else if side == SideShort && ind.RSI >= 35 && ind.RSI <= 65 {
		score += 2
	} else if ind.RSI > 25 && ind.RSI < 75 {
		score += 1
	}

	// Factor 4: MACD histogram on the right side.
	if (side == SideLong && ind.MACD.Histogram > 0) ||
		(side == SideShort && ind.MACD.Histogram < 0) {
		score += 2
		notes = append(notes, "macd histogram favorable")
	}

	// Factor 5: volume is not dead.
	if ind.VolumeRatio >= 0.8 {
		score += 2
	} else if ind.VolumeRatio >= 0.6 {
		score += 1
	}

	return score, notes
}

// entryScore15m grades short-horizon entry timing from the 15m oscillators,
// directionally. Distinct from the trend score by design.
func entryScore15m(side Side, ind *indicator.Set) (float64, []string) {
	score := 0.0
	var notes []string

	if side == SideLong {
		switch {
		case ind.RSI < 30:
			score += 3
			notes = append(notes, fmt.Sprintf("rsi %.1f oversold", ind.RSI))
		case ind.RSI < 40:
			score += 2
		case ind.RSI < 55:
			score += 1
		}
		if ind.Bollinger.Position < 0.3 {
			score += 2
			notes = append(notes, "price near lower band")
		}
		if ind.MACD.Histogram > 0 {
			score += 2
		}
		if ind.PriceVsEMA20 > 0 {
			score += 1
		}
	} else {
		switch {
		case ind.RSI > 70:
			score += 3
			notes = append(notes, fmt.Sprintf("rsi %.1f overbought", ind.RSI))
		case ind.RSI > 60:
			score += 2
		case ind.RSI > 45:
			score += 1
		}
		if ind.Bollinger.Position > 0.7 {
			score += 2
			notes = append(notes, "price near upper band")
		}
		if ind.MACD.Histogram < 0 {
			score += 2
		}
		if ind.PriceVsEMA20 < 0 {
			score += 1
		}
	}

	for _, p := range ind.Patterns {
		if (side == SideLong && p.Direction == patterns.DirectionBullish) ||
			(side == SideShort && p.Direction == patterns.DirectionBearish) {
			score += 2 * p.Strength
			notes = append(notes, fmt.Sprintf("%s pattern", p.Type))
			break
		}
	}

	if score > 10 {
		score = 10
	}
	return score, notes
}

// classifyEntryContext decides whether the proposed entry is a pullback
// into the trend, a band breakout, or plain continuation.
func classifyEntryContext(side Side, m15, h1 *indicator.Set) EntryContext {
	// Breakout: pinned to the band extreme with the bands expanding.
	if side == SideLong && m15.Bollinger.Position > 0.9 && m15.Bollinger.WidthPercent > h1.Bollinger.WidthPercent {
		return ContextBreakout
	}
	if side == SideShort && m15.Bollinger.Position < 0.1 && m15.Bollinger.WidthPercent > h1.Bollinger.WidthPercent {
		return ContextBreakout
	}

	// Pullback: trend intact on 1h but 15m has come back toward the mean.
	trendIntact := (side == SideLong && h1.Trend == indicator.TrendBullish) ||
		(side == SideShort && h1.Trend == indicator.TrendBearish)
	if trendIntact {
		if side == SideLong && m15.Bollinger.Position < 0.45 {
			return ContextPullback
		}
		if side == SideShort && m15.Bollinger.Position > 0.55 {
			return ContextPullback
		}
	}
	return ContextContinuation
}

// volumePass applies the context-dependent acceptable volume band. A
// pullback is healthiest on fading volume; a breakout without volume is a
// trap; continuation just needs participation.
func volumePass(ctx EntryContext, volumeRatio float64) (bool, string) {
	switch ctx {
	case ContextPullback:
		pass := volumeRatio >= 0.4 && volumeRatio <= 1.3
		return pass, fmt.Sprintf("pullback volume ratio %.2f (want 0.4-1.3)", volumeRatio)
	case ContextBreakout:
		pass := volumeRatio >= 1.5
		return pass, fmt.Sprintf("breakout volume ratio %.2f (want >=1.5)", volumeRatio)
	default:
		pass := volumeRatio >= 0.9
		return pass, fmt.Sprintf("continuation volume ratio %.2f (want >=0.9)", volumeRatio)
	}
}

// macdMomentum evaluates MACD momentum with a dead-zone band around zero:
// histogram magnitudes inside the band are noise, not direction.
// Returns (value for the weighted score, pass, detail).
func macdMomentum(side Side, ind *indicator.Set, deadZonePercent float64) (float64, bool, string) {
	deadZone := ind.Price * deadZonePercent / 100
	h := ind.MACD.Histogram

	if deadZone > 0 && h < deadZone && h > -deadZone {
		return 0.5, false, fmt.Sprintf("histogram %.6f inside dead zone ±%.6f", h, deadZone)
	}
	favorable := (side == SideLong && h > 0) || (side == SideShort && h < 0)
	if favorable {
		return 1.0, true, fmt.Sprintf("histogram %.6f favorable", h)
	}
	return 0.0, false, fmt.Sprintf("histogram %.6f against", h)
}

// trendSignalValue maps a timeframe's trend score into [0,1] for the side.
func trendSignalValue(side Side, trendScore float64) float64 {
	v := trendScore / 100
	if side == SideShort {
		v = -v
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
