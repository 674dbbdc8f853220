package indicator

// TrendDirection labels the prevailing trend of one timeframe.
type TrendDirection string

const (
	TrendBullish TrendDirection = "bullish"
	TrendBearish TrendDirection = "bearish"
	TrendNeutral TrendDirection = "neutral"
)

// TrendStrength grades how decisive a non-neutral trend is.
type TrendStrength string

const (
	StrengthStrong   TrendStrength = "strong"
	StrengthModerate TrendStrength = "moderate"
	StrengthWeak     TrendStrength = "weak"
)

// EMAAlignment labels the stacking order of the 20/50/200 EMAs.
type EMAAlignment string

const (
	AlignmentBullish EMAAlignment = "bullish" // EMA20 > EMA50 > EMA200
	AlignmentBearish EMAAlignment = "bearish" // EMA20 < EMA50 < EMA200
	AlignmentMixed   EMAAlignment = "mixed"
)

// Trend score point weights. Trend is derived only from price-vs-EMA
// structure, EMA stacking and EMA slope. Oscillators (RSI, Bollinger) feed
// the separate entry-timing score and must never leak into trend direction.
const (
	trendPointsPerEMALevel = 20 // price above/below each of EMA 20/50/200
	trendPointsStack       = 25 // perfect bullish/bearish stacking order
	trendPointsSlope20     = 8  // EMA20 slope sign
	trendPointsSlope50     = 7  // EMA50 slope sign
	trendNeutralBand       = 25 // |score| below this stays neutral
)

// TrendResult is the structural trend assessment of one timeframe.
type TrendResult struct {
	Direction TrendDirection `json:"direction"`
	Score     float64        `json:"score"` // -100 to +100
	Strength  TrendStrength  `json:"strength"`
	Alignment EMAAlignment   `json:"alignment"`
}

// scoreTrend computes the weighted trend point system from EMA structure.
func scoreTrend(price, ema20, ema50, ema200, slope20, slope50 float64) TrendResult {
	score := 0.0

	for _, ema := range []float64{ema20, ema50, ema200} {
		if ema == 0 {
			continue
		}
		if price > ema {
			score += trendPointsPerEMALevel
		} else if price < ema {
			score -= trendPointsPerEMALevel
		}
	}

	alignment := AlignmentMixed
	if ema20 > ema50 && ema50 > ema200 {
		alignment = AlignmentBullish
		score += trendPointsStack
	} else if ema20 < ema50 && ema50 < ema200 {
		alignment = AlignmentBearish
		score -= trendPointsStack
	}

	if slope20 > 0 {
		score += trendPointsSlope20
	} else if slope20 < 0 {
		score -= trendPointsSlope20
	}
	if slope50 > 0 {
		score += trendPointsSlope50
	} else if slope50 < 0 {
		score -= trendPointsSlope50
	}

	if score > 100 {
		score = 100
	} else if score < -100 {
		score = -100
	}

	direction := TrendNeutral
	if score >= trendNeutralBand {
		direction = TrendBullish
	} else if score <= -trendNeutralBand {
		direction = TrendBearish
	}

	abs := score
	if abs < 0 {
		abs = -abs
	}
	strength := StrengthWeak
	switch {
	case abs >= 70:
		strength = StrengthStrong
	case abs >= 45:
		strength = StrengthModerate
	}

	return TrendResult{
		Direction: direction,
		Score:     score,
		Strength:  strength,
		Alignment: alignment,
	}
}
