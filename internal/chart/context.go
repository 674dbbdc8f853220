package chart

import (
	"futures-signal-engine/internal/market"
)

// StructurePattern labels the swing sequence of one timeframe.
type StructurePattern string

const (
	StructureUptrend   StructurePattern = "HH/HL"
	StructureDowntrend StructurePattern = "LH/LL"
	StructureRanging   StructurePattern = "ranging"
)

// Config tunes the analyzer. Zero values fall back to defaults.
type Config struct {
	SwingWindow         int     `json:"swing_window" yaml:"swing_window"`                 // candles per side, default 2
	ClusterTolerance    float64 `json:"cluster_tolerance" yaml:"cluster_tolerance"`       // default 0.25%
	ConfluenceTolerance float64 `json:"confluence_tolerance" yaml:"confluence_tolerance"` // default 0.5%
	FibonacciEnabled    bool    `json:"fibonacci_enabled" yaml:"fibonacci_enabled"`
	FibMinSwingATRRatio float64 `json:"fib_min_swing_atr_ratio" yaml:"fib_min_swing_atr_ratio"` // default 3.0
}

// DefaultConfig returns the standard analyzer tuning.
func DefaultConfig() Config {
	return Config{
		SwingWindow:         2,
		ClusterTolerance:    0.0025,
		ConfluenceTolerance: 0.005,
		FibonacciEnabled:    true,
		FibMinSwingATRRatio: defaultMinSwingATRRatio,
	}
}

// TimeframeStructure is the per-timeframe analysis result.
type TimeframeStructure struct {
	Timeframe market.Timeframe `json:"timeframe"`
	Pattern   StructurePattern `json:"pattern"`
	Swings    []SwingPoint     `json:"swings"`
	Levels    []PriceLevel     `json:"levels"`
}

// Context is the full multi-timeframe structure picture.
type Context struct {
	Timeframes      []TimeframeStructure `json:"timeframes"`
	ConfluentLevels []PriceLevel         `json:"confluent_levels"`
	CurrentPrice    float64              `json:"current_price"`
}

// AnalyzeTimeframe computes swings, clustered levels and the structure
// pattern for one timeframe. Fibonacci retracements, when enabled and
// passing the ATR gate, are injected into the same clustering pass as the
// swing prices so confluent retracements strengthen existing levels instead
// of being scored separately.
func AnalyzeTimeframe(tf market.Timeframe, candles []market.Candle, atr float64, cfg Config) TimeframeStructure {
	if cfg.SwingWindow == 0 {
		cfg.SwingWindow = 2
	}
	if cfg.ClusterTolerance == 0 {
		cfg.ClusterTolerance = 0.0025
	}

	swings := FindSwings(candles, cfg.SwingWindow)

	var candidates []rawLevel
	for _, s := range swings {
		candidates = append(candidates, rawLevel{price: s.Price, source: SourceSwing, timeframe: string(tf)})
	}
	if cfg.FibonacciEnabled {
		for _, price := range FibLevels(swings, atr, cfg.FibMinSwingATRRatio) {
			candidates = append(candidates, rawLevel{price: price, source: SourceFibonacci, timeframe: string(tf)})
		}
	}

	price := market.LastClose(candles)
	return TimeframeStructure{
		Timeframe: tf,
		Pattern:   classifyStructure(swings),
		Swings:    swings,
		Levels:    ClusterLevels(candidates, cfg.ClusterTolerance, price),
	}
}

// Analyze runs per-timeframe analysis and then clusters all levels again at
// the coarser confluence tolerance. Only levels touched by at least two
// timeframes survive as confluent.
func Analyze(series map[market.Timeframe][]market.Candle, atrs map[market.Timeframe]float64, cfg Config) Context {
	if cfg.ConfluenceTolerance == 0 {
		cfg.ConfluenceTolerance = 0.005
	}

	ctx := Context{}
	var all []rawLevel
	for _, tf := range market.AllTimeframes {
		candles, ok := series[tf]
		if !ok || len(candles) == 0 {
			continue
		}
		ts := AnalyzeTimeframe(tf, candles, atrs[tf], cfg)
		ctx.Timeframes = append(ctx.Timeframes, ts)
		for _, l := range ts.Levels {
			src := SourceSwing
			if l.HasFib {
				src = SourceFibonacci
			}
			all = append(all, rawLevel{price: l.Price, source: src, timeframe: string(tf)})
		}
		// Fastest timeframe present wins as the reference price.
		if ctx.CurrentPrice == 0 {
			ctx.CurrentPrice = market.LastClose(candles)
		}
	}

	for _, l := range ClusterLevels(all, cfg.ConfluenceTolerance, ctx.CurrentPrice) {
		if len(l.Timeframes) >= 2 {
			ctx.ConfluentLevels = append(ctx.ConfluentLevels, l)
		}
	}
	return ctx
}

// classifyStructure compares the last two swing highs and lows.
func classifyStructure(swings []SwingPoint) StructurePattern {
	var highs, lows []float64
	for _, s := range swings {
		if s.Kind == SwingHigh {
			highs = append(highs, s.Price)
		} else {
			lows = append(lows, s.Price)
		}
	}
	if len(highs) < 2 || len(lows) < 2 {
		return StructureRanging
	}
	hh := highs[len(highs)-1] > highs[len(highs)-2]
	hl := lows[len(lows)-1] > lows[len(lows)-2]
	lh := highs[len(highs)-1] < highs[len(highs)-2]
	ll := lows[len(lows)-1] < lows[len(lows)-2]

	switch {
	case hh && hl:
		return StructureUptrend
	case lh && ll:
		return StructureDowntrend
	default:
		return StructureRanging
	}
}
