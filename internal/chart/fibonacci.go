package chart

// Standard retracement ratios applied to the most recent swing range.
var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// defaultMinSwingATRRatio gates Fibonacci levels: the swing range must span
// at least this many ATRs, otherwise the retracement grid is drawn on noise
// and suppressed entirely.
const defaultMinSwingATRRatio = 3.0

// FibLevels computes retracement prices from the latest confirmed swing
// high/low pair. Returns nil when the pair is missing or the swing range
// fails the ATR gate. A non-positive minSwingATRRatio falls back to the
// default gate.
func FibLevels(swings []SwingPoint, atr, minSwingATRRatio float64) []float64 {
	high, low, ok := LastSwingPair(swings)
	if !ok {
		return nil
	}
	if minSwingATRRatio <= 0 {
		minSwingATRRatio = defaultMinSwingATRRatio
	}
	swingRange := high.Price - low.Price
	if swingRange <= 0 {
		return nil
	}
	if atr > 0 && swingRange < atr*minSwingATRRatio {
		return nil
	}

	levels := make([]float64, 0, len(fibRatios))
	for _, r := range fibRatios {
		levels = append(levels, high.Price-swingRange*r)
	}
	return levels
}
