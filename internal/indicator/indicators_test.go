package indicator

import (
	"math"
	"testing"

	"futures-signal-engine/internal/market"
)

// makeCandles builds a series from closes with a small synthetic range
// around each close.
func makeCandles(closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c * 0.999,
			High:     c * 1.002,
			Low:      c * 0.998,
			Close:    c,
			Volume:   1000,
		}
	}
	return candles
}

// rampCloses returns n closes walking from start by step per candle.
func rampCloses(start, step float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return closes
}

func TestSMA(t *testing.T) {
	candles := makeCandles([]float64{1, 2, 3, 4, 5})
	got := SMA(candles, 5)
	if got != 3 {
		t.Errorf("SMA(5) = %v, want 3", got)
	}
	if SMA(candles, 10) != 0 {
		t.Error("SMA with insufficient data should be 0")
	}
}

func TestEMASeriesSeededWithSMA(t *testing.T) {
	series := EMASeries([]float64{1, 2, 3, 4, 5}, 5)
	if len(series) != 1 {
		t.Fatalf("series length = %d, want 1", len(series))
	}
	if series[0] != 3 {
		t.Errorf("seed = %v, want SMA 3", series[0])
	}

	series = EMASeries([]float64{1, 2, 3, 4, 5, 6}, 5)
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2", len(series))
	}
	// multiplier = 2/6, next = (6-3)*1/3 + 3 = 4
	if math.Abs(series[1]-4) > 1e-9 {
		t.Errorf("second EMA = %v, want 4", series[1])
	}

	if EMASeries([]float64{1, 2}, 5) != nil {
		t.Error("insufficient data should return nil series")
	}
}

func TestEMASlopeSign(t *testing.T) {
	up := makeCandles(rampCloses(100, 1, 60))
	if slope := EMASlope(up, 20); slope <= 0 {
		t.Errorf("rising series EMA slope = %v, want > 0", slope)
	}
	down := makeCandles(rampCloses(200, -1, 60))
	if slope := EMASlope(down, 20); slope >= 0 {
		t.Errorf("falling series EMA slope = %v, want < 0", slope)
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	candles := makeCandles(rampCloses(100, 1, 30))
	if got := RSI(candles, 14); got != 100 {
		t.Errorf("RSI of monotonically rising series = %v, want 100", got)
	}
}

func TestRSIAllLossesNearZero(t *testing.T) {
	candles := makeCandles(rampCloses(200, -1, 30))
	got := RSI(candles, 14)
	if got > 1 {
		t.Errorf("RSI of monotonically falling series = %v, want near 0", got)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	candles := makeCandles(rampCloses(100, 1, 14))
	if got := RSI(candles, 14); got != 0 {
		t.Errorf("RSI with %d candles = %v, want 0", len(candles), got)
	}
}

func TestRSIBounds(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 99, 104, 102, 105, 101, 106,
		103, 107, 104, 108, 105, 109, 106, 110, 107, 111}
	got := RSI(makeCandles(closes), 14)
	if got < 0 || got > 100 {
		t.Errorf("RSI = %v, want within [0,100]", got)
	}
}

func TestMACDHistogramIdentity(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/7) + 0.1*float64(i)
	}
	result := MACD(makeCandles(closes), 12, 26, 9)
	if result.MACD == 0 && result.Signal == 0 {
		t.Fatal("MACD returned zero result for sufficient data")
	}
	if math.Abs(result.Histogram-(result.MACD-result.Signal)) > 1e-12 {
		t.Errorf("histogram %v != macd-signal %v", result.Histogram, result.MACD-result.Signal)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	result := MACD(makeCandles(rampCloses(100, 1, 30)), 12, 26, 9)
	if result.MACD != 0 || result.Signal != 0 || result.Histogram != 0 {
		t.Errorf("MACD with 30 candles = %+v, want zero result", result)
	}
}

func TestMACDSignalIsTrueEMA(t *testing.T) {
	// On a rising series the MACD line grows; a true signal-line EMA lags
	// it, so the histogram must be positive.
	result := MACD(makeCandles(rampCloses(100, 1, 120)), 12, 26, 9)
	if result.Histogram <= 0 {
		t.Errorf("rising series histogram = %v, want > 0", result.Histogram)
	}
	if result.Signal >= result.MACD {
		t.Errorf("signal %v should lag macd %v on a rising series", result.Signal, result.MACD)
	}
}

func TestBollingerPositionBounds(t *testing.T) {
	closes := append(rampCloses(100, 0.2, 25), 140) // final spike far above band
	result := Bollinger(makeCandles(closes), 20, 2.0)
	if result.Position != 1 {
		t.Errorf("position above upper band = %v, want clamped to 1", result.Position)
	}

	closes = append(rampCloses(100, 0.2, 25), 60) // crash far below band
	result = Bollinger(makeCandles(closes), 20, 2.0)
	if result.Position != 0 {
		t.Errorf("position below lower band = %v, want clamped to 0", result.Position)
	}
}

func TestBollingerDegenerateFlatSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	result := Bollinger(makeCandles(closes), 20, 2.0)
	if result.Position != 0.5 {
		t.Errorf("flat series position = %v, want 0.5", result.Position)
	}
	if result.WidthPercent != 0 {
		t.Errorf("flat series width = %v, want 0", result.WidthPercent)
	}
	if result.Upper != result.Lower {
		t.Errorf("flat series bands not collapsed: upper %v lower %v", result.Upper, result.Lower)
	}
}

func TestATRPositiveAndFlatZero(t *testing.T) {
	if atr := ATR(makeCandles(rampCloses(100, 1, 30)), 14); atr <= 0 {
		t.Errorf("ATR of moving series = %v, want > 0", atr)
	}

	flat := make([]market.Candle, 30)
	for i := range flat {
		flat[i] = market.Candle{OpenTime: int64(i), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	}
	if atr := ATR(flat, 14); atr != 0 {
		t.Errorf("ATR of flat series = %v, want 0", atr)
	}
}

func TestADXInsufficientData(t *testing.T) {
	result := ADX(makeCandles(rampCloses(100, 1, 28)), 14) // needs 29
	if result.ADX != 0 || result.PlusDI != 0 || result.MinusDI != 0 {
		t.Errorf("ADX with 28 candles = %+v, want zeroes", result)
	}
}

func TestADXTrendingSeries(t *testing.T) {
	result := ADX(makeCandles(rampCloses(100, 2, 60)), 14)
	if result.ADX <= 20 {
		t.Errorf("ADX of strongly trending series = %v, want > 20", result.ADX)
	}
	if result.PlusDI <= result.MinusDI {
		t.Errorf("uptrend should have +DI %v > -DI %v", result.PlusDI, result.MinusDI)
	}
}

func TestVolumeRatio(t *testing.T) {
	candles := makeCandles(rampCloses(100, 1, 25))
	candles[len(candles)-1].Volume = 2000 // double the 1000 baseline
	if got := VolumeRatio(candles, 20); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("VolumeRatio = %v, want 2.0", got)
	}

	short := makeCandles(rampCloses(100, 1, 10))
	if got := VolumeRatio(short, 20); got != 1.0 {
		t.Errorf("VolumeRatio with short history = %v, want neutral 1.0", got)
	}
}
