package chart

import (
	"math"
	"sort"
)

// LevelKind labels which side of price a level sits on.
type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// LevelStrength is the touch-count tier of a clustered level.
type LevelStrength string

const (
	LevelStrong   LevelStrength = "strong"   // 3+ touches
	LevelModerate LevelStrength = "moderate" // 2 touches
	LevelWeak     LevelStrength = "weak"
)

// LevelSource records where a clustered price came from.
type LevelSource string

const (
	SourceSwing     LevelSource = "swing"
	SourceFibonacci LevelSource = "fibonacci"
)

// PriceLevel is a clustered support/resistance level.
type PriceLevel struct {
	Price      float64       `json:"price"` // running average of merged prices
	Touches    int           `json:"touches"`
	Kind       LevelKind     `json:"kind"`
	Strength   LevelStrength `json:"strength"`
	HasFib     bool          `json:"has_fib"` // a Fibonacci level merged into this cluster
	Timeframes []string      `json:"timeframes,omitempty"`
}

// rawLevel is one candidate price before clustering.
type rawLevel struct {
	price     float64
	source    LevelSource
	timeframe string
}

// ClusterLevels merges candidate prices lying within `tolerance` (relative,
// e.g. 0.0025 for 0.25%) of a cluster's running-average price. Candidates
// are processed in price order so clusters form deterministically.
func ClusterLevels(candidates []rawLevel, tolerance float64, currentPrice float64) []PriceLevel {
	if len(candidates) == 0 {
		return nil
	}
	sorted := make([]rawLevel, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].price < sorted[j].price })

	type cluster struct {
		sum        float64
		count      int
		hasFib     bool
		timeframes map[string]bool
	}

	var clusters []*cluster
	for _, cand := range sorted {
		merged := false
		if len(clusters) > 0 {
			last := clusters[len(clusters)-1]
			avg := last.sum / float64(last.count)
			if avg > 0 && math.Abs(cand.price-avg)/avg <= tolerance {
				last.sum += cand.price
				last.count++
				if cand.source == SourceFibonacci {
					last.hasFib = true
				}
				if cand.timeframe != "" {
					last.timeframes[cand.timeframe] = true
				}
				merged = true
			}
		}
		if !merged {
			c := &cluster{sum: cand.price, count: 1, timeframes: make(map[string]bool)}
			if cand.source == SourceFibonacci {
				c.hasFib = true
			}
			if cand.timeframe != "" {
				c.timeframes[cand.timeframe] = true
			}
			clusters = append(clusters, c)
		}
	}

	levels := make([]PriceLevel, 0, len(clusters))
	for _, c := range clusters {
		avg := c.sum / float64(c.count)
		kind := Support
		if avg > currentPrice {
			kind = Resistance
		}
		var tfs []string
		for tf := range c.timeframes {
			tfs = append(tfs, tf)
		}
		sort.Strings(tfs)
		levels = append(levels, PriceLevel{
			Price:      avg,
			Touches:    c.count,
			Kind:       kind,
			Strength:   strengthForTouches(c.count),
			HasFib:     c.hasFib,
			Timeframes: tfs,
		})
	}
	return levels
}

func strengthForTouches(touches int) LevelStrength {
	switch {
	case touches >= 3:
		return LevelStrong
	case touches >= 2:
		return LevelModerate
	default:
		return LevelWeak
	}
}

// NearestLevels returns the closest support below and resistance above the
// current price. Either may be zero-valued when no level exists on that side.
func NearestLevels(levels []PriceLevel, currentPrice float64) (support, resistance PriceLevel) {
	supportDist := math.MaxFloat64
	resistDist := math.MaxFloat64
	for _, l := range levels {
		if l.Price <= currentPrice {
			if d := currentPrice - l.Price; d < supportDist {
				supportDist = d
				support = l
			}
		} else {
			if d := l.Price - currentPrice; d < resistDist {
				resistDist = d
				resistance = l
			}
		}
	}
	return support, resistance
}
