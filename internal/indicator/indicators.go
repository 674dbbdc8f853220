// Package indicator computes the technical indicator bundle the decision
// engine consumes. Every function here is a pure function of the candle
// slice it is given: same candles in, same values out, no shared state.
package indicator

import (
	"math"

	"futures-signal-engine/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the simple moving average of the last `period` closes.
func SMA(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA calculates the exponential moving average of the closes, seeded with
// the SMA of the first `period` values.
func EMA(candles []market.Candle, period int) float64 {
	series := EMASeries(market.Closes(candles), period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// EMASeries returns the full EMA series over values. The first element
// corresponds to values[period-1] (the SMA seed). Returns nil when there is
// not enough data.
func EMASeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	seed := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	series := make([]float64, 0, len(values)-period+1)
	series = append(series, seed)

	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		series = append(series, ema)
	}
	return series
}

// EMASlope returns the percent change per candle of the EMA over the most
// recent step, e.g. 0.15 means the EMA rose 0.15% on the last candle.
func EMASlope(candles []market.Candle, period int) float64 {
	series := EMASeries(market.Closes(candles), period)
	if len(series) < 2 {
		return 0
	}
	prev := series[len(series)-2]
	if prev == 0 {
		return 0
	}
	return (series[len(series)-1] - prev) / prev * 100
}

// ============================================================================
// RSI (Wilder)
// ============================================================================

// RSI calculates the Wilder-smoothed Relative Strength Index. The seed
// averages are SMAs over the first `period` deltas; subsequent deltas use
// Wilder smoothing. A zero average loss yields 100 by convention.
func RSI(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ============================================================================
// MACD
// ============================================================================

// MACDResult holds the MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD calculates MACD(fast,slow,signal) with a true signal line: the signal
// is the EMA of the MACD line series, not an approximation of the last value.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	closes := market.Closes(candles)
	if len(closes) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	fastSeries := EMASeries(closes, fastPeriod)
	slowSeries := EMASeries(closes, slowPeriod)

	// Both series end at the last candle; align them from the tail.
	n := len(slowSeries)
	macdLine := make([]float64, n)
	offset := len(fastSeries) - n
	for i := 0; i < n; i++ {
		macdLine[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries := EMASeries(macdLine, signalPeriod)
	if len(signalSeries) == 0 {
		return MACDResult{}
	}

	macd := macdLine[len(macdLine)-1]
	signal := signalSeries[len(signalSeries)-1]
	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds Bollinger Band values for the latest candle.
type BollingerResult struct {
	Upper        float64 `json:"upper"`
	Middle       float64 `json:"middle"`
	Lower        float64 `json:"lower"`
	Position     float64 `json:"position"`      // 0 = at lower band, 1 = at upper band
	WidthPercent float64 `json:"width_percent"` // band width relative to price
}

// Bollinger calculates Bollinger Bands using the population standard
// deviation. Position is clamped to [0,1]; a degenerate zero-width band
// reports position 0.5.
func Bollinger(candles []market.Candle, period int, stdDevMult float64) BollingerResult {
	if len(candles) < period {
		return BollingerResult{Position: 0.5}
	}

	middle := SMA(candles, period)
	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	upper := middle + stdDev*stdDevMult
	lower := middle - stdDev*stdDevMult
	price := candles[len(candles)-1].Close

	position := 0.5
	if upper > lower {
		position = (price - lower) / (upper - lower)
		if position < 0 {
			position = 0
		} else if position > 1 {
			position = 1
		}
	}

	widthPercent := 0.0
	if price > 0 {
		widthPercent = (upper - lower) / price * 100
	}

	return BollingerResult{
		Upper:        upper,
		Middle:       middle,
		Lower:        lower,
		Position:     position,
		WidthPercent: widthPercent,
	}
}

// ============================================================================
// ATR / ADX (Wilder)
// ============================================================================

func trueRange(c, prev market.Candle) float64 {
	return math.Max(c.High-c.Low, math.Max(
		math.Abs(c.High-prev.Close),
		math.Abs(c.Low-prev.Close),
	))
}

// ATR calculates the Wilder-smoothed Average True Range: the seed is the SMA
// of the first `period` true ranges, later values use Wilder smoothing.
func ATR(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(candles[i], candles[i-1])
	}
	atr := sum / float64(period)

	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRange(candles[i], candles[i-1])) / float64(period)
	}
	return atr
}

// ADXResult holds the directional movement values.
type ADXResult struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

// ADX calculates the Wilder-smoothed Average Directional Index together with
// +DI and -DI. Needs at least 2*period+1 candles, otherwise all zeroes.
func ADX(candles []market.Candle, period int) ADXResult {
	if len(candles) < 2*period+1 {
		return ADXResult{}
	}

	n := len(candles)
	trs := make([]float64, n-1)
	plusDMs := make([]float64, n-1)
	minusDMs := make([]float64, n-1)

	for i := 1; i < n; i++ {
		trs[i-1] = trueRange(candles[i], candles[i-1])
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		if upMove > downMove && upMove > 0 {
			plusDMs[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDMs[i-1] = downMove
		}
	}

	// Wilder-smoothed running sums, seeded with plain sums over the first
	// period entries.
	smoothTR, smoothPlus, smoothMinus := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smoothTR += trs[i]
		smoothPlus += plusDMs[i]
		smoothMinus += minusDMs[i]
	}

	var plusDI, minusDI float64
	var dxs []float64

	computeDX := func() float64 {
		if smoothTR == 0 {
			plusDI, minusDI = 0, 0
			return 0
		}
		plusDI = 100 * smoothPlus / smoothTR
		minusDI = 100 * smoothMinus / smoothTR
		diSum := plusDI + minusDI
		if diSum == 0 {
			return 0
		}
		return 100 * math.Abs(plusDI-minusDI) / diSum
	}
	dxs = append(dxs, computeDX())

	for i := period; i < len(trs); i++ {
		smoothTR = smoothTR - smoothTR/float64(period) + trs[i]
		smoothPlus = smoothPlus - smoothPlus/float64(period) + plusDMs[i]
		smoothMinus = smoothMinus - smoothMinus/float64(period) + minusDMs[i]
		dxs = append(dxs, computeDX())
	}

	// ADX: SMA of the first period DXs, then Wilder smoothing.
	if len(dxs) < period {
		return ADXResult{PlusDI: plusDI, MinusDI: minusDI}
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += dxs[i]
	}
	adx := sum / float64(period)
	for i := period; i < len(dxs); i++ {
		adx = (adx*float64(period-1) + dxs[i]) / float64(period)
	}

	return ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}
}

// ============================================================================
// VOLUME
// ============================================================================

// VolumeRatio compares the latest candle volume against the average of the
// preceding `period` candles. An empty or zero-volume history reports 1.0
// (neutral) rather than dividing by zero.
func VolumeRatio(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 1.0
	}

	sum := 0.0
	for i := len(candles) - period - 1; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1.0
	}
	return candles[len(candles)-1].Volume / avg
}
