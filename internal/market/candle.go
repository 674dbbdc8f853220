// Package market defines the raw market-data value types consumed by the
// analysis engine: candles, timeframes and per-timeframe snapshots. All types
// are plain serializable values with no behavior beyond simple accessors.
package market

import (
	"errors"
	"fmt"
	"time"
)

// Timeframe identifies a candle interval.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// AllTimeframes lists the timeframes the engine evaluates, slowest last.
var AllTimeframes = []Timeframe{Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}

// Duration returns the candle interval as a time.Duration.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether tf is one of the supported intervals.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

// Candle is a single OHLCV bar. OpenTime is unix milliseconds.
type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Body returns the absolute open-to-close size of the candle.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-to-low size of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	top := c.Close
	if c.Open > c.Close {
		top = c.Open
	}
	return c.High - top
}

// LowerWick returns the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	bottom := c.Close
	if c.Open < c.Close {
		bottom = c.Open
	}
	return bottom - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Series validation errors.
var (
	ErrEmptySeries     = errors.New("empty candle series")
	ErrUnorderedSeries = errors.New("candle series not in ascending time order")
)

// ValidateSeries checks that candles are time-ascending with no duplicates.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("%w: index %d (t=%d) after t=%d",
				ErrUnorderedSeries, i, candles[i].OpenTime, candles[i-1].OpenTime)
		}
	}
	return nil
}

// Closes extracts the close prices of a series, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// LastClose returns the most recent close, or 0 for an empty series.
func LastClose(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Close
}
