package chart

import (
	"math"
	"testing"

	"futures-signal-engine/internal/market"
)

// zigzag builds a series oscillating between peaks and troughs so swing
// points land at predictable indexes.
func zigzag(base, amplitude float64, halfPeriod, n int) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		phase := float64(i%(2*halfPeriod)) / float64(halfPeriod)
		var c float64
		if phase < 1 {
			c = base + amplitude*phase
		} else {
			c = base + amplitude*(2-phase)
		}
		candles[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c,
			High:     c + 0.5,
			Low:      c - 0.5,
			Close:    c,
			Volume:   100,
		}
	}
	return candles
}

func TestFindSwingsDetectsPeaksAndTroughs(t *testing.T) {
	candles := zigzag(100, 10, 5, 40)
	swings := FindSwings(candles, 2)

	var highs, lows int
	for _, s := range swings {
		switch s.Kind {
		case SwingHigh:
			highs++
			if s.Price != candles[s.Index].High {
				t.Errorf("swing high price %v != candle high %v", s.Price, candles[s.Index].High)
			}
		case SwingLow:
			lows++
		}
	}
	if highs == 0 || lows == 0 {
		t.Fatalf("expected both swing kinds, got %d highs %d lows", highs, lows)
	}
}

func TestFindSwingsStrengthRange(t *testing.T) {
	for _, s := range FindSwings(zigzag(100, 10, 8, 60), 2) {
		if s.Strength < 1 || s.Strength > 3 {
			t.Errorf("swing strength = %d, want 1-3", s.Strength)
		}
	}
}

func TestFindSwingsEdgesExcluded(t *testing.T) {
	candles := zigzag(100, 10, 5, 30)
	for _, s := range FindSwings(candles, 3) {
		if s.Index < 3 || s.Index > len(candles)-4 {
			t.Errorf("swing at index %d has no full confirmation window", s.Index)
		}
	}
}

func TestClusterLevelsRunningAverage(t *testing.T) {
	candidates := []rawLevel{
		{price: 100.0, source: SourceSwing, timeframe: "1h"},
		{price: 100.1, source: SourceSwing, timeframe: "1h"},
		{price: 100.2, source: SourceSwing, timeframe: "4h"},
		{price: 150.0, source: SourceSwing, timeframe: "1h"},
	}
	levels := ClusterLevels(candidates, 0.0025, 120)
	if len(levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(levels))
	}

	cluster := levels[0]
	if cluster.Touches != 3 {
		t.Errorf("touches = %d, want 3", cluster.Touches)
	}
	if cluster.Strength != LevelStrong {
		t.Errorf("strength = %s, want strong", cluster.Strength)
	}
	if math.Abs(cluster.Price-100.1) > 1e-9 {
		t.Errorf("cluster price = %v, want 100.1 average", cluster.Price)
	}
	if cluster.Kind != Support {
		t.Errorf("level below price should be support, got %s", cluster.Kind)
	}
	if len(cluster.Timeframes) != 2 {
		t.Errorf("timeframes = %v, want both 1h and 4h", cluster.Timeframes)
	}

	if levels[1].Kind != Resistance {
		t.Errorf("level above price should be resistance, got %s", levels[1].Kind)
	}
	if levels[1].Strength != LevelWeak {
		t.Errorf("single touch strength = %s, want weak", levels[1].Strength)
	}
}

func TestClusterLevelsToleranceBoundary(t *testing.T) {
	// 0.3% apart with 0.25% tolerance: two clusters.
	levels := ClusterLevels([]rawLevel{
		{price: 100.0, source: SourceSwing},
		{price: 100.3, source: SourceSwing},
	}, 0.0025, 100)
	if len(levels) != 2 {
		t.Errorf("got %d levels, want 2 separate clusters", len(levels))
	}

	// 0.2% apart: one cluster.
	levels = ClusterLevels([]rawLevel{
		{price: 100.0, source: SourceSwing},
		{price: 100.2, source: SourceSwing},
	}, 0.0025, 100)
	if len(levels) != 1 {
		t.Errorf("got %d levels, want 1 merged cluster", len(levels))
	}
}

func TestNearestLevels(t *testing.T) {
	levels := []PriceLevel{
		{Price: 95, Kind: Support},
		{Price: 98, Kind: Support},
		{Price: 103, Kind: Resistance},
		{Price: 110, Kind: Resistance},
	}
	support, resistance := NearestLevels(levels, 100)
	if support.Price != 98 {
		t.Errorf("nearest support = %v, want 98", support.Price)
	}
	if resistance.Price != 103 {
		t.Errorf("nearest resistance = %v, want 103", resistance.Price)
	}
}

func TestFibLevelsATRGate(t *testing.T) {
	swings := []SwingPoint{
		{Index: 5, Price: 90, Kind: SwingLow},
		{Index: 10, Price: 100, Kind: SwingHigh},
	}

	// Swing range 10 with ATR 1: passes the default 3x gate.
	levels := FibLevels(swings, 1.0, 0)
	if len(levels) != 5 {
		t.Fatalf("got %d fib levels, want 5", len(levels))
	}
	// 0.5 retracement of 90-100.
	if math.Abs(levels[2]-95) > 1e-9 {
		t.Errorf("0.5 retracement = %v, want 95", levels[2])
	}

	// Swing range 10 with ATR 5: 10 < 15, suppressed.
	if got := FibLevels(swings, 5.0, 0); got != nil {
		t.Errorf("small swing should suppress fibs, got %v", got)
	}
}

func TestFibLevelsConfigurableGate(t *testing.T) {
	swings := []SwingPoint{
		{Index: 5, Price: 90, Kind: SwingLow},
		{Index: 10, Price: 100, Kind: SwingHigh},
	}

	// Range 10 at ATR 1 clears the default gate but not a 12x one.
	if got := FibLevels(swings, 1.0, 12); got != nil {
		t.Errorf("12x gate should suppress a 10-ATR swing, got %v", got)
	}
	// A looser 1.5x gate admits what the default would reject.
	if got := FibLevels(swings, 5.0, 1.5); len(got) != 5 {
		t.Errorf("1.5x gate should admit the swing, got %v", got)
	}

	// The document ratio reaches the analyzer through the config.
	candles := zigzag(100, 30, 10, 80)
	cfg := DefaultConfig()
	cfg.FibMinSwingATRRatio = 1000 // nothing passes
	for _, l := range AnalyzeTimeframe(market.Timeframe1h, candles, 1.0, cfg).Levels {
		if l.HasFib {
			t.Fatalf("prohibitive gate should leave no fib-backed level: %+v", l)
		}
	}
}

func TestFibLevelsRequiresPair(t *testing.T) {
	onlyHighs := []SwingPoint{{Price: 100, Kind: SwingHigh}}
	if got := FibLevels(onlyHighs, 1.0, 0); got != nil {
		t.Errorf("missing swing low should yield nil, got %v", got)
	}
}

func TestAnalyzeTimeframeFibJoinsClustering(t *testing.T) {
	candles := zigzag(100, 30, 10, 80)
	ts := AnalyzeTimeframe(market.Timeframe1h, candles, 1.0, DefaultConfig())

	hasFibLevel := false
	for _, l := range ts.Levels {
		if l.HasFib {
			hasFibLevel = true
		}
	}
	if !hasFibLevel {
		t.Error("expected at least one level carrying a fib candidate")
	}
}

func TestAnalyzeConfluenceNeedsTwoTimeframes(t *testing.T) {
	series := map[market.Timeframe][]market.Candle{
		market.Timeframe1h: zigzag(100, 20, 8, 64),
		market.Timeframe4h: zigzag(100, 20, 8, 64),
	}
	atrs := map[market.Timeframe]float64{market.Timeframe1h: 1, market.Timeframe4h: 1}

	ctx := Analyze(series, atrs, Config{FibonacciEnabled: false})
	if len(ctx.Timeframes) != 2 {
		t.Fatalf("got %d timeframe results, want 2", len(ctx.Timeframes))
	}
	for _, l := range ctx.ConfluentLevels {
		if len(l.Timeframes) < 2 {
			t.Errorf("confluent level %v touched by %v, want >= 2 timeframes", l.Price, l.Timeframes)
		}
	}
	// Identical series on both timeframes must produce confluence.
	if len(ctx.ConfluentLevels) == 0 {
		t.Error("identical series across timeframes should yield confluent levels")
	}
	if ctx.CurrentPrice == 0 {
		t.Error("current price should be set from the fastest timeframe")
	}
}

func TestAnalyzeConfluenceKeepsFibProvenance(t *testing.T) {
	series := map[market.Timeframe][]market.Candle{
		market.Timeframe1h: zigzag(100, 30, 10, 80),
		market.Timeframe4h: zigzag(100, 30, 10, 80),
	}
	atrs := map[market.Timeframe]float64{market.Timeframe1h: 1, market.Timeframe4h: 1}

	ctx := Analyze(series, atrs, DefaultConfig())
	if len(ctx.ConfluentLevels) == 0 {
		t.Fatal("identical series across timeframes should yield confluent levels")
	}
	hasFib := false
	for _, l := range ctx.ConfluentLevels {
		if l.HasFib {
			hasFib = true
		}
	}
	if !hasFib {
		t.Error("fib-backed per-timeframe levels should stay fib-backed after confluence merging")
	}
}

func TestClassifyStructure(t *testing.T) {
	up := []SwingPoint{
		{Price: 100, Kind: SwingHigh}, {Price: 95, Kind: SwingLow},
		{Price: 105, Kind: SwingHigh}, {Price: 99, Kind: SwingLow},
	}
	if got := classifyStructure(up); got != StructureUptrend {
		t.Errorf("HH/HL sequence = %s, want uptrend", got)
	}

	down := []SwingPoint{
		{Price: 105, Kind: SwingHigh}, {Price: 99, Kind: SwingLow},
		{Price: 100, Kind: SwingHigh}, {Price: 95, Kind: SwingLow},
	}
	if got := classifyStructure(down); got != StructureDowntrend {
		t.Errorf("LH/LL sequence = %s, want downtrend", got)
	}

	if got := classifyStructure(up[:2]); got != StructureRanging {
		t.Errorf("too few swings = %s, want ranging", got)
	}
}
