// Package patterns detects candlestick reversal patterns on the tail of a
// candle series. Body thresholds scale with ATR so that low-volatility noise
// does not register as a signal.
package patterns

import (
	"futures-signal-engine/internal/market"
)

// Type identifies a candlestick pattern.
type Type string

const (
	Doji             Type = "doji"
	Hammer           Type = "hammer"
	ShootingStar     Type = "shooting_star"
	BullishPinBar    Type = "bullish_pin_bar"
	BearishPinBar    Type = "bearish_pin_bar"
	BullishEngulfing Type = "bullish_engulfing"
	BearishEngulfing Type = "bearish_engulfing"
	MorningStar      Type = "morning_star"
	EveningStar      Type = "evening_star"
)

// Direction of the move a pattern suggests.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Pattern is one detected candlestick pattern on the latest candles.
// WickBodyRatio is set for the wick-rejection patterns (hammer, shooting
// star, pin bars): the dominant wick's length relative to the body.
type Pattern struct {
	Type          Type      `json:"type"`
	Direction     Direction `json:"direction"`
	Strength      float64   `json:"strength"` // 0.0 to 1.0
	WickBodyRatio float64   `json:"wick_body_ratio,omitempty"`
}

// minBodyATRRatio is the minimum body size relative to ATR for a candle to
// count as a meaningful body. Smaller bodies are treated as noise.
const minBodyATRRatio = 0.3

// Detector detects candlestick patterns with ATR-scaled thresholds.
type Detector struct {
	atr float64
}

// NewDetector creates a detector calibrated to the series' current ATR.
// A zero ATR disables the body-size gate (degenerate flat series).
func NewDetector(atr float64) *Detector {
	return &Detector{atr: atr}
}

// Detect inspects the tail of the series and returns every pattern present
// on the most recent candles, strongest context first (3-candle patterns
// before single-candle ones).
func (d *Detector) Detect(candles []market.Candle) []Pattern {
	var found []Pattern
	n := len(candles)
	if n == 0 {
		return found
	}

	if n >= 3 {
		c1, c2, c3 := candles[n-3], candles[n-2], candles[n-1]
		if d.isMorningStar(c1, c2, c3) {
			found = append(found, Pattern{Type: MorningStar, Direction: DirectionBullish, Strength: d.threeCandleStrength(c1, c3)})
		}
		if d.isEveningStar(c1, c2, c3) {
			found = append(found, Pattern{Type: EveningStar, Direction: DirectionBearish, Strength: d.threeCandleStrength(c1, c3)})
		}
	}

	if n >= 2 {
		prev, cur := candles[n-2], candles[n-1]
		if d.isBullishEngulfing(prev, cur) {
			found = append(found, Pattern{Type: BullishEngulfing, Direction: DirectionBullish, Strength: d.engulfStrength(prev, cur)})
		}
		if d.isBearishEngulfing(prev, cur) {
			found = append(found, Pattern{Type: BearishEngulfing, Direction: DirectionBearish, Strength: d.engulfStrength(prev, cur)})
		}
	}

	last := candles[n-1]
	if d.isDoji(last) {
		found = append(found, Pattern{Type: Doji, Direction: DirectionNeutral, Strength: 0.4})
	}
	if d.isHammer(last) {
		found = append(found, wickPattern(Hammer, DirectionBullish, last.LowerWick(), last))
	}
	if d.isShootingStar(last) {
		found = append(found, wickPattern(ShootingStar, DirectionBearish, last.UpperWick(), last))
	}
	if d.isBullishPinBar(last) {
		found = append(found, wickPattern(BullishPinBar, DirectionBullish, last.LowerWick(), last))
	}
	if d.isBearishPinBar(last) {
		found = append(found, wickPattern(BearishPinBar, DirectionBearish, last.UpperWick(), last))
	}

	return found
}

// wickPattern builds a wick-rejection pattern carrying the wick-to-body
// ratio so downstream filters can demand a minimum rejection depth.
func wickPattern(typ Type, dir Direction, wick float64, c market.Candle) Pattern {
	p := Pattern{Type: typ, Direction: dir, Strength: wickStrength(wick, c)}
	if body := c.Body(); body > 0 {
		p.WickBodyRatio = wick / body
	}
	return p
}

// hasBody reports whether the candle body clears the ATR noise gate.
func (d *Detector) hasBody(c market.Candle) bool {
	if d.atr <= 0 {
		return c.Body() > 0
	}
	return c.Body() >= d.atr*minBodyATRRatio
}

func (d *Detector) isDoji(c market.Candle) bool {
	r := c.Range()
	if r == 0 {
		return false
	}
	// Tiny body relative to the full range, with wicks on both sides.
	return c.Body() <= r*0.1 && c.UpperWick() > 0 && c.LowerWick() > 0
}

func (d *Detector) isHammer(c market.Candle) bool {
	if !d.hasBody(c) {
		return false
	}
	return c.LowerWick() >= c.Body()*2 && c.UpperWick() <= c.Body()*0.5
}

func (d *Detector) isShootingStar(c market.Candle) bool {
	if !d.hasBody(c) {
		return false
	}
	return c.UpperWick() >= c.Body()*2 && c.LowerWick() <= c.Body()*0.5
}

// Pin bars are looser than hammer/shooting star: one dominant wick covering
// most of the range, body anywhere in the opposite third.
func (d *Detector) isBullishPinBar(c market.Candle) bool {
	r := c.Range()
	if r == 0 || d.isHammer(c) {
		return false
	}
	return c.LowerWick() >= r*0.66 && c.Body() <= r*0.3
}

func (d *Detector) isBearishPinBar(c market.Candle) bool {
	r := c.Range()
	if r == 0 || d.isShootingStar(c) {
		return false
	}
	return c.UpperWick() >= r*0.66 && c.Body() <= r*0.3
}

func (d *Detector) isBullishEngulfing(prev, cur market.Candle) bool {
	return prev.IsBearish() && cur.IsBullish() && d.hasBody(cur) &&
		cur.Open <= prev.Close && cur.Close >= prev.Open
}

func (d *Detector) isBearishEngulfing(prev, cur market.Candle) bool {
	return prev.IsBullish() && cur.IsBearish() && d.hasBody(cur) &&
		cur.Open >= prev.Close && cur.Close <= prev.Open
}

func (d *Detector) isMorningStar(c1, c2, c3 market.Candle) bool {
	if !c1.IsBearish() || !c3.IsBullish() {
		return false
	}
	if !d.hasBody(c1) || !d.hasBody(c3) {
		return false
	}
	// Middle candle has a small body gapping or sitting below the first body.
	smallMiddle := c2.Body() <= c1.Body()*0.5
	recovers := c3.Close >= (c1.Open+c1.Close)/2
	return smallMiddle && recovers
}

func (d *Detector) isEveningStar(c1, c2, c3 market.Candle) bool {
	if !c1.IsBullish() || !c3.IsBearish() {
		return false
	}
	if !d.hasBody(c1) || !d.hasBody(c3) {
		return false
	}
	smallMiddle := c2.Body() <= c1.Body()*0.5
	rejects := c3.Close <= (c1.Open+c1.Close)/2
	return smallMiddle && rejects
}

// engulfStrength scales with how much the engulfing body exceeds the
// engulfed one, capped at 1.0.
func (d *Detector) engulfStrength(prev, cur market.Candle) float64 {
	if prev.Body() == 0 {
		return 0.5
	}
	ratio := cur.Body() / prev.Body()
	s := 0.4 + ratio*0.2
	if s > 1 {
		s = 1
	}
	return s
}

func (d *Detector) threeCandleStrength(c1, c3 market.Candle) float64 {
	if c1.Body() == 0 {
		return 0.6
	}
	s := 0.6 + (c3.Body()/c1.Body())*0.2
	if s > 1 {
		s = 1
	}
	return s
}

func wickStrength(wick float64, c market.Candle) float64 {
	if c.Body() == 0 {
		return 0.3
	}
	s := 0.3 + (wick/c.Body())*0.15
	if s > 1 {
		s = 1
	}
	return s
}
