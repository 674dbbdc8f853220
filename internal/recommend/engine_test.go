package recommend

import (
	"math"
	"testing"
	"time"

	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/market"
	"futures-signal-engine/internal/patterns"
	"futures-signal-engine/internal/strategy"
)

// bullishSnapshots describes a textbook long: 4h trend up, healthy 1h
// pullback setup, 15m oversold with momentum turning.
func bullishSnapshots() map[market.Timeframe]*indicator.Set {
	return map[market.Timeframe]*indicator.Set{
		market.Timeframe4h: {
			Trend:        indicator.TrendBullish,
			TrendScore:   90,
			EMAAlignment: indicator.AlignmentBullish,
		},
		market.Timeframe1h: {
			Trend:        indicator.TrendBullish,
			PriceVsEMA20: 0.5,
			RSI:          50,
			MACD:         indicator.MACDResult{Histogram: 0.5},
			VolumeRatio:  1.0,
			Bollinger:    indicator.BollingerResult{Position: 0.5, WidthPercent: 2.0},
		},
		market.Timeframe15m: {
			Trend:        indicator.TrendBullish,
			RSI:          28,
			Bollinger:    indicator.BollingerResult{Position: 0.2, WidthPercent: 1.5},
			MACD:         indicator.MACDResult{Histogram: 0.5},
			PriceVsEMA20: 0.3,
			VolumeRatio:  0.9,
			Price:        100,
			ATRPercent:   1.5,
		},
	}
}

func TestGenerateLongFromAlignedSetup(t *testing.T) {
	cfg := strategy.Default()
	rec := Generate(Input{Snapshots: bullishSnapshots(), Now: time.Now()}, cfg)

	if rec.Action != ActionLong {
		t.Fatalf("action = %s (reason %q), want LONG", rec.Action, rec.Reason)
	}
	if rec.Long.Strength < cfg.Signals.ActionThreshold {
		t.Errorf("long strength = %v, want at least the %v threshold", rec.Long.Strength, cfg.Signals.ActionThreshold)
	}
	if rec.Long.Strength-rec.Short.Strength < cfg.Signals.DirectionLeadThreshold {
		t.Errorf("lead = %v, want at least %v", rec.Long.Strength-rec.Short.Strength, cfg.Signals.DirectionLeadThreshold)
	}
	if rec.Confidence < 65 || rec.Confidence > 95 {
		t.Errorf("confidence = %v, want within [65,95]", rec.Confidence)
	}
	if rec.Long.Grade != GradeA {
		t.Errorf("grade = %s at strength %v, want A", rec.Long.Grade, rec.Long.Strength)
	}

	// Core checklist: everything but BTC correlation evaluates and passes.
	for _, key := range []ChecklistKey{CheckTrend4h, CheckSetup1h, CheckEntry15m, CheckVolume, CheckMomentum} {
		item, ok := rec.Checklist.Get(key)
		if !ok || !item.Pass || !item.Available {
			t.Errorf("%s: pass=%v available=%v, want passing", key, item.Pass, item.Available)
		}
	}
}

func TestGenerateInsufficientData(t *testing.T) {
	snaps := bullishSnapshots()
	delete(snaps, market.Timeframe4h)

	rec := Generate(Input{Snapshots: snaps}, strategy.Default())
	if rec.Action != ActionWait || rec.Confidence != 5 {
		t.Errorf("action=%s confidence=%v, want explicit WAIT at confidence 5", rec.Action, rec.Confidence)
	}
	if len(rec.Warnings) == 0 {
		t.Errorf("missing timeframes must be warned about")
	}
}

func TestGenerateThresholdOverrideForcesForming(t *testing.T) {
	cfg := strategy.Default()
	base := Generate(Input{Snapshots: bullishSnapshots()}, cfg)

	// Same picture with the regime demanding near-perfection.
	raised := Generate(Input{Snapshots: bullishSnapshots(), ActionThresholdOverride: 95}, cfg)
	if raised.Action != ActionWait || !raised.Forming {
		t.Fatalf("action=%s forming=%v, want a forming WAIT under the raised threshold", raised.Action, raised.Forming)
	}
	if raised.Confidence >= base.Confidence {
		t.Errorf("forming confidence %v should be discounted below actionable %v", raised.Confidence, base.Confidence)
	}
}

func TestGenerateNoSetup(t *testing.T) {
	flat := map[market.Timeframe]*indicator.Set{
		market.Timeframe4h:  {Trend: indicator.TrendNeutral},
		market.Timeframe1h:  {Trend: indicator.TrendNeutral, RSI: 50, VolumeRatio: 0.3, PriceVsEMA20: 5, Bollinger: indicator.BollingerResult{Position: 0.5}},
		market.Timeframe15m: {Trend: indicator.TrendNeutral, RSI: 50, VolumeRatio: 0.3, Price: 100, Bollinger: indicator.BollingerResult{Position: 0.5}},
	}
	rec := Generate(Input{Snapshots: flat}, strategy.Default())
	if rec.Action != ActionWait || rec.Forming {
		t.Errorf("action=%s forming=%v, want a plain WAIT with nothing forming", rec.Action, rec.Forming)
	}
}

func TestMissingBTCExcludedFromWeights(t *testing.T) {
	cfg := strategy.Default()

	without := Generate(Input{Snapshots: bullishSnapshots()}, cfg)
	item, ok := without.Long.Checklist.Get(CheckCorrelation)
	if !ok || item.Available {
		t.Errorf("missing btc data should appear as unavailable, got %+v", item)
	}

	btc := &indicator.Set{Trend: indicator.TrendBullish}
	with := Generate(Input{Snapshots: bullishSnapshots(), BTC: btc}, cfg)
	item, ok = with.Long.Checklist.Get(CheckCorrelation)
	if !ok || !item.Available || !item.Pass {
		t.Errorf("aligned btc should pass, got %+v", item)
	}
	// An aligned full-value signal joining the normalization raises strength.
	if with.Long.Strength <= without.Long.Strength {
		t.Errorf("strength with aligned btc = %v, want above %v", with.Long.Strength, without.Long.Strength)
	}
}

func TestContraryBTCToleratedByStrongSetup(t *testing.T) {
	snaps := bullishSnapshots()
	btc := &indicator.Set{Trend: indicator.TrendBearish}

	rec := Generate(Input{Snapshots: snaps, BTC: btc}, strategy.Default())
	item, _ := rec.Long.Checklist.Get(CheckCorrelation)
	// The 1h setup scores 10/10, past the tolerance bar.
	if !item.Pass {
		t.Errorf("contrary btc with a 10/10 setup should still pass, got %+v", item)
	}
}

func TestRejectionCheckAppliesWickBodyRatio(t *testing.T) {
	cfg := strategy.Default()
	cfg.Rejection = &strategy.RejectionConfig{Enabled: true, MinWickBodyRatio: 3}

	shallow := bullishSnapshots()
	shallow[market.Timeframe15m].Patterns = []patterns.Pattern{
		{Type: patterns.Hammer, Direction: patterns.DirectionBullish, Strength: 0.6, WickBodyRatio: 2},
	}
	rec := Generate(Input{Snapshots: shallow}, cfg)
	item, ok := rec.Long.Checklist.Get(CheckRejection)
	if !ok {
		t.Fatal("rejection check should appear when configured")
	}
	if item.Pass {
		t.Errorf("wick/body 2 below the 3x minimum should fail: %+v", item)
	}

	deep := bullishSnapshots()
	deep[market.Timeframe15m].Patterns = []patterns.Pattern{
		{Type: patterns.Hammer, Direction: patterns.DirectionBullish, Strength: 0.6, WickBodyRatio: 4},
	}
	rec = Generate(Input{Snapshots: deep}, cfg)
	if item, _ := rec.Long.Checklist.Get(CheckRejection); !item.Pass {
		t.Errorf("wick/body 4 over the 3x minimum should pass: %+v", item)
	}
}

func TestVolatilityPenaltyTaxesConfidence(t *testing.T) {
	cfg := strategy.Default()
	calm := Generate(Input{Snapshots: bullishSnapshots()}, cfg)

	snaps := bullishSnapshots()
	snaps[market.Timeframe15m].ATRPercent = 6
	wild := Generate(Input{Snapshots: snaps}, cfg)

	// (6-3)*2 penalty.
	if math.Abs((calm.Confidence-wild.Confidence)-6) > 1e-9 {
		t.Errorf("penalty = %v, want 6 points", calm.Confidence-wild.Confidence)
	}
	found := false
	for _, w := range wild.Warnings {
		if w == "elevated volatility: atr 6.00%" {
			found = true
		}
	}
	if !found {
		t.Errorf("volatility warning missing: %v", wild.Warnings)
	}
}

func TestAuxConfidenceAdjustmentBounded(t *testing.T) {
	if got := auxConfidenceAdjustment(SideLong, &AuxSignals{OrderFlowImbalance: 1}); got != 5 {
		t.Errorf("full buy imbalance = %v, want +5 for long", got)
	}
	if got := auxConfidenceAdjustment(SideShort, &AuxSignals{OrderFlowImbalance: 1}); got != -5 {
		t.Errorf("full buy imbalance = %v, want -5 for short", got)
	}
	// Magnet above plus flow, both capped: never more than ±10 total.
	aux := &AuxSignals{OrderFlowImbalance: 3, LiquidationAboveUSD: 100, LiquidationBelowUSD: 0}
	if got := auxConfidenceAdjustment(SideLong, aux); got != 10 {
		t.Errorf("stacked aux = %v, want capped at 10", got)
	}
	if got := auxConfidenceAdjustment(SideLong, nil); got != 0 {
		t.Errorf("nil aux = %v, want 0", got)
	}
}

func TestQuietSessionPenalty(t *testing.T) {
	cfg := strategy.Default()
	cfg.Session = &strategy.SessionConfig{Enabled: true, QuietHoursUTCStart: 2, QuietHoursUTCEnd: 6, QuietPenalty: 10}

	active := Generate(Input{
		Snapshots: bullishSnapshots(),
		Now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}, cfg)
	quiet := Generate(Input{
		Snapshots: bullishSnapshots(),
		Now:       time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC),
	}, cfg)

	if math.Abs((active.Confidence-quiet.Confidence)-10) > 1e-9 {
		t.Errorf("quiet penalty = %v, want 10 points", active.Confidence-quiet.Confidence)
	}
}

func TestInQuietHoursWrapsMidnight(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 6, 1, h, 0, 0, 0, time.UTC) }
	if !inQuietHours(at(23), 22, 4) {
		t.Errorf("23:00 should be quiet in a 22-04 window")
	}
	if !inQuietHours(at(3), 22, 4) {
		t.Errorf("03:00 should be quiet in a 22-04 window")
	}
	if inQuietHours(at(12), 22, 4) {
		t.Errorf("12:00 should not be quiet in a 22-04 window")
	}
}

func TestGradeFor(t *testing.T) {
	s := strategy.Default().Signals
	cases := []struct {
		strength float64
		want     Grade
	}{
		{85, GradeA}, {80, GradeA}, {75, GradeB}, {65, GradeC}, {55, GradeD}, {40, GradeF},
	}
	for _, tc := range cases {
		if got := gradeFor(tc.strength, s); got != tc.want {
			t.Errorf("gradeFor(%v) = %s, want %s", tc.strength, got, tc.want)
		}
	}
}

func TestChecklistFixedOrder(t *testing.T) {
	rec := Generate(Input{Snapshots: bullishSnapshots()}, strategy.Default())

	var keys []ChecklistKey
	for _, item := range rec.Long.Checklist {
		keys = append(keys, item.Key)
	}
	// Core items always appear, in declaration order.
	want := []ChecklistKey{CheckTrend4h, CheckSetup1h, CheckEntry15m, CheckVolume, CheckCorrelation, CheckMomentum}
	if len(keys) < len(want) {
		t.Fatalf("checklist = %v, want at least the %d core items", keys, len(want))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("checklist[%d] = %s, want %s", i, keys[i], k)
		}
	}
	if got := rec.Long.Checklist.CorePassCount(); got != 5 {
		t.Errorf("core pass count = %d, want 5 with btc unavailable", got)
	}
}
