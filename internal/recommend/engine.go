package recommend

import (
	"fmt"
	"time"

	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/market"
	"futures-signal-engine/internal/patterns"
	"futures-signal-engine/internal/strategy"
)

// Action is the final trade recommendation.
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionWait  Action = "WAIT"
)

// Grade letters a direction's strength.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// AuxSignals are optional collaborator-supplied signals. Their absence
// excludes the corresponding weights from normalization instead of being
// faked with neutral values.
type AuxSignals struct {
	// OrderFlowImbalance in [-1,1]: positive means aggressive buying.
	OrderFlowImbalance float64 `json:"order_flow_imbalance"`
	// Liquidation cluster magnitudes (notional) above and below price.
	LiquidationAboveUSD float64 `json:"liquidation_above_usd"`
	LiquidationBelowUSD float64 `json:"liquidation_below_usd"`
}

// Input is everything one evaluation consumes. No hidden state: the same
// Input and strategy always produce the same recommendation.
type Input struct {
	Snapshots map[market.Timeframe]*indicator.Set
	BTC       *indicator.Set // BTC reference trend, optional
	Aux       *AuxSignals    // order-flow/liquidation context, optional
	Now       time.Time

	// ActionThresholdOverride replaces the document's action threshold when
	// positive; the regime classifier feeds this.
	ActionThresholdOverride float64
}

// DirectionRecommendation is the per-direction breakdown.
type DirectionRecommendation struct {
	Strength   float64   `json:"strength"`   // 0-100
	Confidence float64   `json:"confidence"` // 5-95
	Grade      Grade     `json:"grade"`
	Checklist  Checklist `json:"checklist"`
	Reasons    []string  `json:"reasons"`
	Warnings   []string  `json:"warnings"`
}

// TradingRecommendation is the engine's primary output.
type TradingRecommendation struct {
	Action     Action                  `json:"action"`
	Forming    bool                    `json:"forming"` // WAIT but a setup is building
	Confidence float64                 `json:"confidence"`
	Reason     string                  `json:"reason"`
	Long       DirectionRecommendation `json:"long"`
	Short      DirectionRecommendation `json:"short"`
	Checklist  Checklist               `json:"checklist"` // chosen direction's list
	Warnings   []string                `json:"warnings"`
}

// Generate evaluates both directions and selects the action. The 15m, 1h
// and 4h snapshots are required; without them the evaluation degrades to an
// explicit WAIT with a warning rather than guessing.
func Generate(in Input, cfg *strategy.Config) TradingRecommendation {
	m15 := in.Snapshots[market.Timeframe15m]
	h1 := in.Snapshots[market.Timeframe1h]
	h4 := in.Snapshots[market.Timeframe4h]

	if m15 == nil || h1 == nil || h4 == nil {
		return TradingRecommendation{
			Action:     ActionWait,
			Confidence: 5,
			Reason:     "insufficient data: 15m, 1h and 4h indicators required",
			Warnings:   []string{"insufficient data for evaluation"},
		}
	}

	long := evaluateDirection(SideLong, in, cfg)
	short := evaluateDirection(SideShort, in, cfg)

	actionThreshold := cfg.Signals.ActionThreshold
	if in.ActionThresholdOverride > 0 {
		actionThreshold = in.ActionThresholdOverride
	}

	rec := TradingRecommendation{Long: long, Short: short}

	best, bestSide := long, SideLong
	worst := short
	if short.Strength > long.Strength {
		best, bestSide = short, SideShort
		worst = long
	}
	lead := best.Strength - worst.Strength

	switch {
	case best.Strength >= actionThreshold && lead >= cfg.Signals.DirectionLeadThreshold:
		if bestSide == SideLong {
			rec.Action = ActionLong
		} else {
			rec.Action = ActionShort
		}
		rec.Confidence = best.Confidence
		rec.Checklist = best.Checklist
		rec.Reason = fmt.Sprintf("%s strength %.1f over threshold %.1f with %.1f lead",
			bestSide, best.Strength, actionThreshold, lead)
	case best.Strength >= actionThreshold:
		rec.Action = ActionWait
		rec.Forming = true
		rec.Confidence = clamp(best.Confidence*0.7, 5, 95)
		rec.Checklist = best.Checklist
		rec.Reason = fmt.Sprintf("both directions contested: %s leads by only %.1f (need %.1f)",
			bestSide, lead, cfg.Signals.DirectionLeadThreshold)
	case best.Strength >= cfg.Signals.SitOnHandsThreshold:
		rec.Action = ActionWait
		rec.Forming = true
		rec.Confidence = clamp(best.Confidence*0.7, 5, 95)
		rec.Checklist = best.Checklist
		rec.Reason = fmt.Sprintf("%s setup forming at %.1f, below action threshold %.1f",
			bestSide, best.Strength, actionThreshold)
	default:
		rec.Action = ActionWait
		rec.Confidence = clamp(best.Confidence*0.5, 5, 95)
		rec.Checklist = best.Checklist
		rec.Reason = fmt.Sprintf("no setup: best direction %s at %.1f", bestSide, best.Strength)
	}

	rec.Warnings = append(rec.Warnings, best.Warnings...)
	return rec
}

// weightedSignal is one contributor to direction strength.
type weightedSignal struct {
	name      string
	value     float64 // 0-1
	weight    float64
	available bool
}

func evaluateDirection(side Side, in Input, cfg *strategy.Config) DirectionRecommendation {
	m15 := in.Snapshots[market.Timeframe15m]
	h1 := in.Snapshots[market.Timeframe1h]
	h4 := in.Snapshots[market.Timeframe4h]
	d1 := in.Snapshots[market.Timeframe1d]

	rec := DirectionRecommendation{}
	cb := newChecklistBuilder()
	w := cfg.Signals.Weights

	// --- Checklist + signal values -------------------------------------

	// 4h trend from EMA structure only.
	trendAligned := (side == SideLong && h4.Trend == indicator.TrendBullish) ||
		(side == SideShort && h4.Trend == indicator.TrendBearish)
	cb.set(CheckTrend4h, trendAligned,
		fmt.Sprintf("4h trend %s (score %.0f, stack %s)", h4.Trend, h4.TrendScore, h4.EMAAlignment))
	if trendAligned {
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("4h trend %s", h4.Trend))
	}

	// 1h setup rubric.
	setupScore, setupNotes := setupScore1h(side, h1)
	setupPass := setupScore >= cfg.Signals.MinSetupScore
	cb.set(CheckSetup1h, setupPass,
		fmt.Sprintf("setup score %.1f/10 (need %.1f)", setupScore, cfg.Signals.MinSetupScore))
	rec.Reasons = append(rec.Reasons, setupNotes...)

	// 15m entry timing.
	entryScore, entryNotes := entryScore15m(side, m15)
	entryPass := entryScore >= cfg.Signals.MinEntryScore
	cb.set(CheckEntry15m, entryPass,
		fmt.Sprintf("entry score %.1f (need %.1f)", entryScore, cfg.Signals.MinEntryScore))
	rec.Reasons = append(rec.Reasons, entryNotes...)

	// Context-dependent volume.
	entryCtx := classifyEntryContext(side, m15, h1)
	volPass, volDetail := volumePass(entryCtx, m15.VolumeRatio)
	cb.set(CheckVolume, volPass, volDetail)

	// BTC correlation: a strong setup tolerates a contrary BTC, a weak one
	// does not.
	btcAvailable := in.BTC != nil
	btcAligned := false
	if btcAvailable {
		btcAligned = (side == SideLong && in.BTC.Trend != indicator.TrendBearish) ||
			(side == SideShort && in.BTC.Trend != indicator.TrendBullish)
		btcPass := btcAligned || setupScore >= 7
		cb.set(CheckCorrelation, btcPass,
			fmt.Sprintf("btc trend %s, setup %.1f", in.BTC.Trend, setupScore))
	} else {
		cb.unavailable(CheckCorrelation, "btc data unavailable")
	}

	// MACD momentum with dead zone.
	macdValue, macdPass, macdDetail := macdMomentum(side, m15, cfg.Signals.MACDDeadZonePercent)
	cb.set(CheckMomentum, macdPass, macdDetail)

	// Optional: daily trend.
	dailyAvailable := d1 != nil
	if dailyAvailable {
		dailyOK := (side == SideLong && d1.Trend != indicator.TrendBearish) ||
			(side == SideShort && d1.Trend != indicator.TrendBullish)
		cb.set(CheckDailyTrend, dailyOK, fmt.Sprintf("1d trend %s", d1.Trend))
	} else {
		cb.unavailable(CheckDailyTrend, "1d data unavailable")
	}

	// Optional: liquidity bias from liquidation clusters.
	liqValue, liqAvailable := liquidityBias(side, in.Aux)
	if liqAvailable {
		cb.set(CheckLiquidityBias, liqValue > 0.5, fmt.Sprintf("liquidity bias %.2f", liqValue))
	}

	// Optional: wick rejection on 15m.
	if cfg.Rejection != nil && cfg.Rejection.Enabled {
		rejPass := hasRejection(side, m15, cfg.Rejection.MinWickBodyRatio)
		cb.set(CheckRejection, rejPass,
			fmt.Sprintf("wick rejection on 15m (min ratio %.1f)", cfg.Rejection.MinWickBodyRatio))
	}

	rec.Checklist = cb.build()

	// --- Weighted strength ---------------------------------------------

	signals := []weightedSignal{
		{"trend_4h", trendSignalValue(side, h4.TrendScore), w.Trend4h, true},
		{"setup_1h", setupScore / 10, w.Setup1h, true},
		{"entry_15m", entryScore / 10, w.Entry15m, true},
		{"volume", volumeSignalValue(volPass, entryCtx, m15.VolumeRatio), w.Volume, true},
		{"macd_momentum", macdValue, w.MACDMomentum, true},
	}
	if dailyAvailable {
		signals = append(signals, weightedSignal{"daily_trend", trendValueFor(side, d1.Trend), w.DailyTrend, true})
	}
	if btcAvailable {
		v := 0.0
		if btcAligned {
			v = 1.0
		}
		signals = append(signals, weightedSignal{"btc_alignment", v, w.BTCAlignment, true})
	}
	if in.Aux != nil {
		flowValue := 0.5 + in.Aux.OrderFlowImbalance/2
		if side == SideShort {
			flowValue = 1 - flowValue
		}
		signals = append(signals, weightedSignal{"order_flow", clamp(flowValue, 0, 1), w.OrderFlow, true})
	}
	if liqAvailable {
		signals = append(signals, weightedSignal{"liquidity", liqValue, w.Liquidity, true})
	}
	if v, ok := candlestickValue(side, m15); ok {
		signals = append(signals, weightedSignal{"candlestick", v, w.Candlestick, true})
	}

	var weightedSum, weightSum float64
	for _, sig := range signals {
		if !sig.available || sig.weight <= 0 {
			continue
		}
		weightedSum += sig.value * sig.weight
		weightSum += sig.weight
	}
	if weightSum > 0 {
		rec.Strength = weightedSum / weightSum * 100
	}

	// --- Confidence ------------------------------------------------------

	confidence := rec.Strength
	confidence += auxConfidenceAdjustment(side, in.Aux)

	// Volatility penalty: unusually wide 15m ATR taxes conviction.
	if m15.ATRPercent > 3 {
		penalty := (m15.ATRPercent - 3) * 2
		if penalty > 10 {
			penalty = 10
		}
		confidence -= penalty
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("elevated volatility: atr %.2f%%", m15.ATRPercent))
	}

	// Session penalty when configured and the clock is in the quiet window.
	if cfg.Session != nil && cfg.Session.Enabled && !in.Now.IsZero() {
		if inQuietHours(in.Now, cfg.Session.QuietHoursUTCStart, cfg.Session.QuietHoursUTCEnd) {
			confidence -= cfg.Session.QuietPenalty
			rec.Warnings = append(rec.Warnings, "quiet session hours")
		}
	}

	rec.Confidence = clamp(confidence, 5, 95)
	rec.Grade = gradeFor(rec.Strength, cfg.Signals)

	if !trendAligned {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("4h trend not aligned for %s", side))
	}
	return rec
}

func trendValueFor(side Side, trend indicator.TrendDirection) float64 {
	switch {
	case side == SideLong && trend == indicator.TrendBullish,
		side == SideShort && trend == indicator.TrendBearish:
		return 1.0
	case trend == indicator.TrendNeutral:
		return 0.5
	default:
		return 0.0
	}
}

func volumeSignalValue(pass bool, ctx EntryContext, ratio float64) float64 {
	if !pass {
		return 0.2
	}
	if ctx == ContextPullback {
		return 0.8
	}
	v := 0.7 + (ratio-1)*0.3
	return clamp(v, 0.7, 1.0)
}

// liquidityBias scores liquidation clusters: for a long, a large cluster
// above price acts as a magnet, one below as a wall of risk.
func liquidityBias(side Side, aux *AuxSignals) (float64, bool) {
	if aux == nil {
		return 0, false
	}
	total := aux.LiquidationAboveUSD + aux.LiquidationBelowUSD
	if total <= 0 {
		return 0, false
	}
	above := aux.LiquidationAboveUSD / total
	if side == SideLong {
		return above, true
	}
	return 1 - above, true
}

func candlestickValue(side Side, ind *indicator.Set) (float64, bool) {
	best := 0.0
	found := false
	for _, p := range ind.Patterns {
		match := (side == SideLong && p.Direction == patterns.DirectionBullish) ||
			(side == SideShort && p.Direction == patterns.DirectionBearish)
		if match && p.Strength > best {
			best = p.Strength
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

// hasRejection reports a wick-rejection candle for the side, demanding at
// least minWickBodyRatio of wick per unit of body when configured.
func hasRejection(side Side, ind *indicator.Set, minWickBodyRatio float64) bool {
	for _, p := range ind.Patterns {
		if minWickBodyRatio > 0 && p.WickBodyRatio < minWickBodyRatio {
			continue
		}
		if side == SideLong && (p.Type == patterns.Hammer || p.Type == patterns.BullishPinBar) {
			return true
		}
		if side == SideShort && (p.Type == patterns.ShootingStar || p.Type == patterns.BearishPinBar) {
			return true
		}
	}
	return false
}

// auxConfidenceAdjustment applies the bounded order-flow and liquidation
// adjustments. Each effect is individually capped so auxiliary data can
// nudge but never dominate the technical picture.
func auxConfidenceAdjustment(side Side, aux *AuxSignals) float64 {
	if aux == nil {
		return 0
	}
	adj := 0.0

	// Order flow: up to ±5.
	imb := aux.OrderFlowImbalance
	if side == SideShort {
		imb = -imb
	}
	adj += clamp(imb*5, -5, 5)

	// Liquidation asymmetry: magnet in trade direction up to +5, wall
	// against up to -5.
	total := aux.LiquidationAboveUSD + aux.LiquidationBelowUSD
	if total > 0 {
		asym := (aux.LiquidationAboveUSD - aux.LiquidationBelowUSD) / total
		if side == SideShort {
			asym = -asym
		}
		adj += clamp(asym*5, -5, 5)
	}
	return adj
}

func inQuietHours(now time.Time, startUTC, endUTC int) bool {
	h := now.UTC().Hour()
	if startUTC <= endUTC {
		return h >= startUTC && h < endUTC
	}
	return h >= startUTC || h < endUTC
}

func gradeFor(strength float64, s strategy.SignalsConfig) Grade {
	switch {
	case strength >= s.GradeA:
		return GradeA
	case strength >= s.GradeB:
		return GradeB
	case strength >= s.GradeC:
		return GradeC
	case strength >= s.GradeD:
		return GradeD
	default:
		return GradeF
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
