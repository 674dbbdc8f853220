// Package chart analyzes price structure: swing points, clustered
// support/resistance levels, Fibonacci retracements and cross-timeframe
// confluence. All analysis is a pure function of the candle series.
package chart

import (
	"futures-signal-engine/internal/market"
)

// SwingKind labels a swing point.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a confirmed local extreme.
type SwingPoint struct {
	Index    int       `json:"index"`
	Time     int64     `json:"time"`
	Price    float64   `json:"price"`
	Kind     SwingKind `json:"kind"`
	Strength int       `json:"strength"` // confirming candles per side, 1-3
}

// maxSwingStrength caps the confirmation count per side.
const maxSwingStrength = 3

// FindSwings scans the series for swing highs/lows. A candle is a swing high
// when its high strictly exceeds every high within `window` candles on both
// sides (swing lows mirror this). Strength counts how many candles per side
// confirm it, up to maxSwingStrength.
func FindSwings(candles []market.Candle, window int) []SwingPoint {
	if window < 1 {
		window = 2
	}
	var swings []SwingPoint

	for i := window; i < len(candles)-window; i++ {
		if strength := confirmHigh(candles, i, window); strength > 0 {
			swings = append(swings, SwingPoint{
				Index:    i,
				Time:     candles[i].OpenTime,
				Price:    candles[i].High,
				Kind:     SwingHigh,
				Strength: strength,
			})
		}
		if strength := confirmLow(candles, i, window); strength > 0 {
			swings = append(swings, SwingPoint{
				Index:    i,
				Time:     candles[i].OpenTime,
				Price:    candles[i].Low,
				Kind:     SwingLow,
				Strength: strength,
			})
		}
	}
	return swings
}

// confirmHigh returns the swing-high strength at index i, or 0 when i is not
// a swing high for the base window.
func confirmHigh(candles []market.Candle, i, window int) int {
	h := candles[i].High
	for j := i - window; j <= i+window; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= h {
			return 0
		}
	}
	// Extend the window to grade strength beyond the base confirmation.
	strength := 1
	for w := window + 1; w <= window+maxSwingStrength-1; w++ {
		lo, hi := i-w, i+w
		if lo < 0 || hi >= len(candles) {
			break
		}
		if candles[lo].High >= h || candles[hi].High >= h {
			break
		}
		strength++
	}
	if strength > maxSwingStrength {
		strength = maxSwingStrength
	}
	return strength
}

func confirmLow(candles []market.Candle, i, window int) int {
	l := candles[i].Low
	for j := i - window; j <= i+window; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= l {
			return 0
		}
	}
	strength := 1
	for w := window + 1; w <= window+maxSwingStrength-1; w++ {
		lo, hi := i-w, i+w
		if lo < 0 || hi >= len(candles) {
			break
		}
		if candles[lo].Low <= l || candles[hi].Low <= l {
			break
		}
		strength++
	}
	if strength > maxSwingStrength {
		strength = maxSwingStrength
	}
	return strength
}

// LastSwingPair returns the most recent confirmed swing high and swing low,
// in either order of occurrence. ok is false when the series has not printed
// both yet.
func LastSwingPair(swings []SwingPoint) (high, low SwingPoint, ok bool) {
	foundHigh, foundLow := false, false
	for i := len(swings) - 1; i >= 0; i-- {
		s := swings[i]
		if s.Kind == SwingHigh && !foundHigh {
			high = s
			foundHigh = true
		}
		if s.Kind == SwingLow && !foundLow {
			low = s
			foundLow = true
		}
		if foundHigh && foundLow {
			return high, low, true
		}
	}
	return SwingPoint{}, SwingPoint{}, false
}
