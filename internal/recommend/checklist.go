// Package recommend scores LONG/SHORT/WAIT from weighted per-timeframe
// signals, producing a full per-direction breakdown: checklist, strength,
// confidence, grade. The engine is threshold-agnostic; every cutoff and
// weight comes from the strategy document.
package recommend

// ChecklistKey names one checklist condition. The set and order are fixed
// per direction; optional checks appear with Available=false when their
// input data is missing rather than vanishing from the list.
type ChecklistKey string

const (
	CheckTrend4h       ChecklistKey = "trend_4h"
	CheckSetup1h       ChecklistKey = "setup_1h"
	CheckEntry15m      ChecklistKey = "entry_15m"
	CheckVolume        ChecklistKey = "volume"
	CheckCorrelation   ChecklistKey = "btc_correlation"
	CheckMomentum      ChecklistKey = "macd_momentum"
	CheckDailyTrend    ChecklistKey = "daily_trend"
	CheckLiquidityBias ChecklistKey = "liquidity_bias"
	CheckRejection     ChecklistKey = "rejection"
)

// checklistOrder fixes the presentation order of checklist entries.
var checklistOrder = []ChecklistKey{
	CheckTrend4h,
	CheckSetup1h,
	CheckEntry15m,
	CheckVolume,
	CheckCorrelation,
	CheckMomentum,
	CheckDailyTrend,
	CheckLiquidityBias,
	CheckRejection,
}

// coreChecks are the items every evaluation carries; the rest are optional.
var coreChecks = map[ChecklistKey]bool{
	CheckTrend4h:     true,
	CheckSetup1h:     true,
	CheckEntry15m:    true,
	CheckVolume:      true,
	CheckCorrelation: true,
	CheckMomentum:    true,
}

// ChecklistItem is one named boolean condition with its descriptive value.
type ChecklistItem struct {
	Key       ChecklistKey `json:"key"`
	Pass      bool         `json:"pass"`
	Value     string       `json:"value"`
	Available bool         `json:"available"`
}

// Checklist is the fixed-size ordered item list for one direction.
type Checklist []ChecklistItem

// checklistBuilder accumulates items and emits them in the fixed order.
type checklistBuilder struct {
	items map[ChecklistKey]ChecklistItem
}

func newChecklistBuilder() *checklistBuilder {
	return &checklistBuilder{items: make(map[ChecklistKey]ChecklistItem)}
}

func (b *checklistBuilder) set(key ChecklistKey, pass bool, value string) {
	b.items[key] = ChecklistItem{Key: key, Pass: pass, Value: value, Available: true}
}

func (b *checklistBuilder) unavailable(key ChecklistKey, value string) {
	b.items[key] = ChecklistItem{Key: key, Pass: false, Value: value, Available: false}
}

// build emits every core check plus any optional check that was touched,
// in the fixed order.
func (b *checklistBuilder) build() Checklist {
	var out Checklist
	for _, key := range checklistOrder {
		if item, ok := b.items[key]; ok {
			out = append(out, item)
			continue
		}
		if coreChecks[key] {
			out = append(out, ChecklistItem{Key: key, Value: "not evaluated", Available: false})
		}
	}
	return out
}

// CorePassCount counts passing core items.
func (c Checklist) CorePassCount() int {
	n := 0
	for _, item := range c {
		if coreChecks[item.Key] && item.Pass {
			n++
		}
	}
	return n
}

// Get returns the item for a key, if present.
func (c Checklist) Get(key ChecklistKey) (ChecklistItem, bool) {
	for _, item := range c {
		if item.Key == key {
			return item, true
		}
	}
	return ChecklistItem{}, false
}
