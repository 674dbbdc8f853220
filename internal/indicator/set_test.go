package indicator

import (
	"errors"
	"testing"
)

func TestComputeInsufficientData(t *testing.T) {
	_, err := Compute(makeCandles(rampCloses(100, 1, MinCandles-1)))
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Compute with %d candles: err = %v, want ErrInsufficientData", MinCandles-1, err)
	}
}

func TestComputeUptrend(t *testing.T) {
	set, err := Compute(makeCandles(rampCloses(100, 0.5, 120)))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if set.Trend != TrendBullish {
		t.Errorf("trend = %s, want bullish", set.Trend)
	}
	if set.TrendScore <= 0 {
		t.Errorf("trend score = %v, want > 0", set.TrendScore)
	}
	if set.EMA200 != 0 {
		t.Errorf("EMA200 = %v with 120 candles, want 0 (needs 200)", set.EMA200)
	}
	if set.EMA20 <= set.EMA50 {
		t.Errorf("uptrend should have EMA20 %v > EMA50 %v", set.EMA20, set.EMA50)
	}
	if set.Price != 100+0.5*119 {
		t.Errorf("price = %v, want last close", set.Price)
	}
	if set.ATRPercent <= 0 {
		t.Errorf("atr percent = %v, want > 0", set.ATRPercent)
	}
}

func TestComputeEMA200WithLongSeries(t *testing.T) {
	set, err := Compute(makeCandles(rampCloses(100, 0.2, 250)))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if set.EMA200 == 0 {
		t.Error("EMA200 should be computed with 250 candles")
	}
	if set.EMAAlignment != AlignmentBullish {
		t.Errorf("alignment = %s, want bullish with full stack", set.EMAAlignment)
	}
}

func TestEntryScoreBounds(t *testing.T) {
	for _, closes := range [][]float64{
		rampCloses(100, 2, 120),
		rampCloses(500, -2, 120),
	} {
		set, err := Compute(makeCandles(closes))
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		if set.EntryScore < -10 || set.EntryScore > 10 {
			t.Errorf("entry score = %v, want within [-10,10]", set.EntryScore)
		}
	}
}

func TestEntryScoreIndependentOfTrendScore(t *testing.T) {
	// A strong downtrend ending in a deep oversold bounce setup: the trend
	// score must stay negative while the entry score leans positive.
	closes := rampCloses(500, -2, 120)
	set, err := Compute(makeCandles(closes))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if set.TrendScore >= 0 {
		t.Errorf("downtrend trend score = %v, want < 0", set.TrendScore)
	}
	// RSI pinned low and price at the lower band both push the entry score
	// up, against the trend direction.
	if set.RSI > 10 {
		t.Errorf("rsi = %v, want pinned low in a relentless downtrend", set.RSI)
	}
}

func TestScoreTrendPointSystem(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		ema20     float64
		ema50     float64
		ema200    float64
		slope20   float64
		slope50   float64
		wantScore float64
		wantDir   TrendDirection
	}{
		{
			name:  "full bullish stack",
			price: 110, ema20: 105, ema50: 100, ema200: 95,
			slope20: 0.2, slope50: 0.1,
			wantScore: 100, wantDir: TrendBullish, // 60+25+8+7 clamped to 100
		},
		{
			name:  "full bearish stack",
			price: 90, ema20: 95, ema50: 100, ema200: 105,
			slope20: -0.2, slope50: -0.1,
			wantScore: -100, wantDir: TrendBearish,
		},
		{
			name:  "missing ema200 skipped",
			price: 110, ema20: 105, ema50: 100, ema200: 0,
			slope20: 0.2, slope50: 0.1,
			// two levels (40) + no stack (ema50 > ema200=0 holds, so stack
			// applies: 25) + slopes (15) = 80
			wantScore: 80, wantDir: TrendBullish,
		},
		{
			name:  "mixed structure stays neutral",
			price: 100.5, ema20: 100, ema50: 101, ema200: 99,
			slope20: 0.01, slope50: -0.01,
			// +20 (above ema20) -20 (below ema50) +20 (above ema200) +8 -7 = 21
			wantScore: 21, wantDir: TrendNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreTrend(tt.price, tt.ema20, tt.ema50, tt.ema200, tt.slope20, tt.slope50)
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", got.Direction, tt.wantDir)
			}
		})
	}
}

func TestScoreTrendNeutralBandBoundary(t *testing.T) {
	// Exactly at the band: |25| is bullish, 24 is neutral.
	r := scoreTrend(110, 0, 0, 0, 0, 0)
	if r.Score != 0 || r.Direction != TrendNeutral {
		t.Errorf("all-zero EMAs: score %v dir %s, want 0/neutral", r.Score, r.Direction)
	}

	r = scoreTrend(110, 105, 100, 0, 0, 0) // 20+20+25(stack) = 65
	if r.Direction != TrendBullish {
		t.Errorf("score %v should be bullish", r.Score)
	}
	if r.Strength != StrengthModerate {
		t.Errorf("score 65 strength = %s, want moderate", r.Strength)
	}
}
