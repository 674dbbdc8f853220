package indicator

import (
	"errors"
	"fmt"

	"futures-signal-engine/internal/market"
	"futures-signal-engine/internal/patterns"
)

const (
	// MinCandles is the minimum series length for a full indicator bundle.
	// Below this the pipeline refuses to produce partial values.
	MinCandles = 50

	// MaxCandles caps how much history the pipeline consumes. Enough for a
	// meaningful EMA-200; older candles contribute nothing but CPU time.
	MaxCandles = 720
)

// ErrInsufficientData is returned when a series is too short for a full
// indicator bundle. Callers must treat it as "no result", never as neutral
// values.
var ErrInsufficientData = errors.New("insufficient candle data")

// Set is the full indicator bundle for one timeframe, computed in a single
// pass over the candle series. A Set is only ever produced complete; there
// are no partially filled Sets.
type Set struct {
	RSI       float64         `json:"rsi"`
	MACD      MACDResult      `json:"macd"`
	Bollinger BollingerResult `json:"bollinger"`
	ATR       float64         `json:"atr"`
	ATRPercent float64        `json:"atr_percent"` // ATR relative to price

	VolumeRatio float64 `json:"volume_ratio"`

	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`

	EMA20  float64 `json:"ema_20"`
	EMA50  float64 `json:"ema_50"`
	EMA200 float64 `json:"ema_200"`

	EMA20Slope  float64 `json:"ema_20_slope"`  // %/candle
	EMA50Slope  float64 `json:"ema_50_slope"`  // %/candle
	EMA200Slope float64 `json:"ema_200_slope"` // %/candle

	PriceVsEMA20  float64 `json:"price_vs_ema_20"`  // % above/below
	PriceVsEMA50  float64 `json:"price_vs_ema_50"`  // % above/below
	PriceVsEMA200 float64 `json:"price_vs_ema_200"` // % above/below

	EMAAlignment EMAAlignment   `json:"ema_alignment"`
	Trend        TrendDirection `json:"trend"`
	TrendScore   float64        `json:"trend_score"`    // -100 to +100
	TrendStrength TrendStrength `json:"trend_strength"`

	// EntryScore is the short-horizon timing score from oscillators. It is
	// deliberately kept apart from the trend score: it answers "is now a
	// good moment", never "which way is the market going".
	EntryScore float64 `json:"entry_score"` // -10 to +10

	Patterns []patterns.Pattern `json:"patterns,omitempty"`

	Price float64 `json:"price"` // last close the bundle was computed at
}

// Compute runs the full pipeline over a candle series (oldest first) and
// returns the indicator bundle, or ErrInsufficientData for short series.
func Compute(candles []market.Candle) (*Set, error) {
	if len(candles) < MinCandles {
		return nil, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(candles), MinCandles)
	}
	if len(candles) > MaxCandles {
		candles = candles[len(candles)-MaxCandles:]
	}

	price := candles[len(candles)-1].Close

	set := &Set{
		RSI:         RSI(candles, 14),
		MACD:        MACD(candles, 12, 26, 9),
		Bollinger:   Bollinger(candles, 20, 2.0),
		ATR:         ATR(candles, 14),
		VolumeRatio: VolumeRatio(candles, 20),
		EMA20:       EMA(candles, 20),
		EMA50:       EMA(candles, 50),
		EMA20Slope:  EMASlope(candles, 20),
		EMA50Slope:  EMASlope(candles, 50),
		Price:       price,
	}

	adx := ADX(candles, 14)
	set.ADX = adx.ADX
	set.PlusDI = adx.PlusDI
	set.MinusDI = adx.MinusDI

	// EMA-200 only when the series can carry it; shorter series keep it at
	// zero and the trend scorer skips the missing level.
	if len(candles) >= 200 {
		set.EMA200 = EMA(candles, 200)
		set.EMA200Slope = EMASlope(candles, 200)
	}

	if set.ATR > 0 && price > 0 {
		set.ATRPercent = set.ATR / price * 100
	}

	set.PriceVsEMA20 = priceVsEMA(price, set.EMA20)
	set.PriceVsEMA50 = priceVsEMA(price, set.EMA50)
	set.PriceVsEMA200 = priceVsEMA(price, set.EMA200)

	trend := scoreTrend(price, set.EMA20, set.EMA50, set.EMA200, set.EMA20Slope, set.EMA50Slope)
	set.Trend = trend.Direction
	set.TrendScore = trend.Score
	set.TrendStrength = trend.Strength
	set.EMAAlignment = trend.Alignment

	set.EntryScore = entryTimingScore(set)
	set.Patterns = patterns.NewDetector(set.ATR).Detect(candles)

	return set, nil
}

func priceVsEMA(price, ema float64) float64 {
	if ema == 0 {
		return 0
	}
	return (price - ema) / ema * 100
}

// entryTimingScore scores short-horizon entry timing from oscillators.
// Positive favors longs, negative favors shorts. This score never feeds
// trend direction.
func entryTimingScore(s *Set) float64 {
	score := 0.0

	switch {
	case s.RSI < 30:
		score += 3
	case s.RSI < 40:
		score += 1.5
	case s.RSI > 70:
		score -= 3
	case s.RSI > 60:
		score -= 1.5
	}

	switch {
	case s.Bollinger.Position < 0.2:
		score += 2
	case s.Bollinger.Position > 0.8:
		score -= 2
	}

	if s.MACD.Histogram > 0 {
		score += 2
	} else if s.MACD.Histogram < 0 {
		score -= 2
	}

	if s.PriceVsEMA20 > 0 {
		score += 1
	} else if s.PriceVsEMA20 < 0 {
		score -= 1
	}

	if score > 10 {
		score = 10
	} else if score < -10 {
		score = -10
	}
	return score
}

// Snapshot pairs one timeframe's candles with its computed indicators.
type Snapshot struct {
	Timeframe  market.Timeframe `json:"timeframe"`
	Candles    []market.Candle  `json:"candles"`
	Indicators *Set             `json:"indicators"`
}

// NewSnapshot computes the indicator bundle for one timeframe's candles.
func NewSnapshot(tf market.Timeframe, candles []market.Candle) (Snapshot, error) {
	set, err := Compute(candles)
	if err != nil {
		return Snapshot{}, fmt.Errorf("timeframe %s: %w", tf, err)
	}
	return Snapshot{Timeframe: tf, Candles: candles, Indicators: set}, nil
}
