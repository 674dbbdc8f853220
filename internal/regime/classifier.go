// Package regime classifies the prevailing volatility/trend conditions from
// two timeframes' indicators and maps each regime to adjusted decision
// thresholds. The classifier is state-free: the same inputs always produce
// the same classification.
package regime

import (
	"futures-signal-engine/internal/indicator"
)

// Regime labels coarse market conditions.
type Regime string

const (
	StrongTrend   Regime = "strong_trend"
	Trending      Regime = "trending"
	Ranging       Regime = "ranging"
	LowVolatility Regime = "low_volatility"
)

// Thresholds are the regime boundaries. Values come from the strategy
// document's optional regime section; zero-value fields fall back to
// DefaultThresholds.
type Thresholds struct {
	StrongTrendADX     float64 `json:"strong_trend_adx" yaml:"strong_trend_adx"`
	StrongTrendBBWidth float64 `json:"strong_trend_bb_width" yaml:"strong_trend_bb_width"`
	LowVolADX          float64 `json:"low_vol_adx" yaml:"low_vol_adx"`
	LowVolBBWidth      float64 `json:"low_vol_bb_width" yaml:"low_vol_bb_width"`
	TrendingADX        float64 `json:"trending_adx" yaml:"trending_adx"`
	TrendingLowerADX   float64 `json:"trending_lower_adx" yaml:"trending_lower_adx"`
	TrendingBBWidth    float64 `json:"trending_bb_width" yaml:"trending_bb_width"`
}

// DefaultThresholds returns the standard regime boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StrongTrendADX:     35,
		StrongTrendBBWidth: 2.0,
		LowVolADX:          15,
		LowVolBBWidth:      0.8,
		TrendingADX:        20,
		TrendingLowerADX:   25,
		TrendingBBWidth:    1.2,
	}
}

// Adjustments holds the per-regime overrides consumed by the recommendation
// and exit engines instead of a separate code path.
type Adjustments struct {
	ActionThreshold float64 `json:"action_threshold"`
	TimeboxMaxHours float64 `json:"timebox_max_hours"`
	TimeboxWeight   float64 `json:"timebox_weight"`
}

// Analysis is the classifier output.
type Analysis struct {
	Regime      Regime      `json:"regime"`
	Confidence  float64     `json:"confidence"` // 0-100
	Adjustments Adjustments `json:"adjustments"`
}

// Classify labels the regime from the higher timeframe's ADX and the lower
// timeframe's Bollinger width. Priority order: strong_trend, then
// low_volatility, then trending, with ranging as the default.
func Classify(higher, lower *indicator.Set, th Thresholds) Analysis {
	def := DefaultThresholds()
	if th.StrongTrendADX == 0 {
		th.StrongTrendADX = def.StrongTrendADX
	}
	if th.StrongTrendBBWidth == 0 {
		th.StrongTrendBBWidth = def.StrongTrendBBWidth
	}
	if th.LowVolADX == 0 {
		th.LowVolADX = def.LowVolADX
	}
	if th.LowVolBBWidth == 0 {
		th.LowVolBBWidth = def.LowVolBBWidth
	}
	if th.TrendingADX == 0 {
		th.TrendingADX = def.TrendingADX
	}
	if th.TrendingLowerADX == 0 {
		th.TrendingLowerADX = def.TrendingLowerADX
	}
	if th.TrendingBBWidth == 0 {
		th.TrendingBBWidth = def.TrendingBBWidth
	}

	adxHigh := higher.ADX
	adxLow := lower.ADX
	bbWidth := lower.Bollinger.WidthPercent

	var r Regime
	var confidence float64
	switch {
	case adxHigh >= th.StrongTrendADX && bbWidth >= th.StrongTrendBBWidth:
		r = StrongTrend
		confidence = 80 + clamp((adxHigh-th.StrongTrendADX)*0.5, 0, 15)
	case adxHigh < th.LowVolADX && bbWidth < th.LowVolBBWidth:
		r = LowVolatility
		confidence = 75
	case adxHigh >= th.TrendingADX || (adxLow >= th.TrendingLowerADX && bbWidth >= th.TrendingBBWidth):
		r = Trending
		confidence = 65
	default:
		r = Ranging
		confidence = 60
	}

	return Analysis{
		Regime:      r,
		Confidence:  confidence,
		Adjustments: adjustmentsFor(r),
	}
}

// adjustmentsFor maps each regime to its threshold overrides. Strong trends
// lower the action bar and let winners run longer; quiet markets demand more
// conviction and shorter holds.
func adjustmentsFor(r Regime) Adjustments {
	switch r {
	case StrongTrend:
		return Adjustments{ActionThreshold: 60, TimeboxMaxHours: 72, TimeboxWeight: 0.7}
	case Trending:
		return Adjustments{ActionThreshold: 65, TimeboxMaxHours: 48, TimeboxWeight: 1.0}
	case LowVolatility:
		return Adjustments{ActionThreshold: 75, TimeboxMaxHours: 24, TimeboxWeight: 1.3}
	default: // Ranging
		return Adjustments{ActionThreshold: 70, TimeboxMaxHours: 36, TimeboxWeight: 1.2}
	}
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
