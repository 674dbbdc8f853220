package position

import (
	"fmt"

	"futures-signal-engine/internal/strategy"
)

// Account is the margin picture the sizing engine works against.
type Account struct {
	Equity          float64 `json:"equity"`
	AvailableMargin float64 `json:"available_margin"`
}

// SizingResult is the outcome of an entry-sizing computation. A plain value
// object: Skip with a reason, or a concrete margin/volume allocation.
type SizingResult struct {
	Skip       bool      `json:"skip"`
	Reason     string    `json:"reason"`
	Mode       EntryMode `json:"mode,omitempty"`
	Margin     float64   `json:"margin"`
	Volume     float64   `json:"volume"` // base-asset quantity at the given price
	Notional   float64   `json:"notional"`
	Leverage   int       `json:"leverage"`
	Confidence float64   `json:"confidence"`
}

// SizeInitialEntry sizes the opening entry from recommendation confidence.
// Below the minimum confidence the entry is skipped; at or above the full
// threshold the full margin percent applies, otherwise the cautious percent.
// The allocation is clamped twice: the opening entry already counts against
// max_total_margin_percent, and the configured free-margin reserve stays
// untouched.
func SizeInitialEntry(confidence, price float64, acct Account, cfg *strategy.Config) SizingResult {
	sz := cfg.Sizing

	if confidence < sz.MinEntryConfidence {
		return SizingResult{
			Skip:       true,
			Reason:     fmt.Sprintf("confidence %.1f below minimum %.1f", confidence, sz.MinEntryConfidence),
			Confidence: confidence,
		}
	}
	if price <= 0 || acct.AvailableMargin <= 0 {
		return SizingResult{Skip: true, Reason: "no margin available", Confidence: confidence}
	}

	mode := ModeCautious
	marginPct := sz.CautiousEntryMarginPercent
	if confidence >= sz.FullEntryConfidence {
		mode = ModeFull
		marginPct = sz.FullEntryMarginPercent
	}

	margin := acct.AvailableMargin * marginPct / 100
	if headroom := acct.Equity * sz.MaxTotalMarginPercent / 100; headroom > 0 && margin > headroom {
		margin = headroom
	}
	margin = clampToReserve(margin, acct, sz.MinFreeMarginPercent)
	if margin <= 0 {
		return SizingResult{Skip: true, Reason: "free margin reserve exhausted", Confidence: confidence}
	}

	notional := margin * float64(sz.Leverage)
	return SizingResult{
		Mode:       mode,
		Margin:     margin,
		Volume:     notional / price,
		Notional:   notional,
		Leverage:   sz.Leverage,
		Confidence: confidence,
	}
}

// SizeDCAEntry sizes one averaging entry. The margin is a percent of equity,
// capped by the remaining headroom under max_total_margin_percent and by the
// free-margin reserve. Callers check the DCA count cap before sizing; this
// guards it again so a miscounted call cannot overshoot.
func SizeDCAEntry(s State, price float64, acct Account, cfg *strategy.Config) SizingResult {
	if !s.IsOpen {
		return SizingResult{Skip: true, Reason: "position not open"}
	}
	if s.DCACount >= cfg.DCA.MaxCount {
		return SizingResult{
			Skip:   true,
			Reason: fmt.Sprintf("dca count %d at maximum %d", s.DCACount, cfg.DCA.MaxCount),
		}
	}
	if price <= 0 || acct.Equity <= 0 {
		return SizingResult{Skip: true, Reason: "no margin available"}
	}

	margin := acct.Equity * cfg.DCA.MarginPercent / 100

	headroom := acct.Equity*cfg.Sizing.MaxTotalMarginPercent/100 - s.TotalMarginUsed
	if headroom <= 0 {
		return SizingResult{Skip: true, Reason: "total margin cap reached"}
	}
	if margin > headroom {
		margin = headroom
	}
	margin = clampToReserve(margin, acct, cfg.Sizing.MinFreeMarginPercent)
	if margin <= 0 {
		return SizingResult{Skip: true, Reason: "free margin reserve exhausted"}
	}

	notional := margin * float64(s.Leverage)
	return SizingResult{
		Mode:     ModeCautious,
		Margin:   margin,
		Volume:   notional / price,
		Notional: notional,
		Leverage: s.Leverage,
	}
}

// clampToReserve caps margin so at least minFreePercent of equity stays
// unallocated after the entry.
func clampToReserve(margin float64, acct Account, minFreePercent float64) float64 {
	reserve := acct.Equity * minFreePercent / 100
	maxUsable := acct.AvailableMargin - reserve
	if maxUsable < 0 {
		maxUsable = 0
	}
	if margin > maxUsable {
		margin = maxUsable
	}
	return margin
}
