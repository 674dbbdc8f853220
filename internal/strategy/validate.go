package strategy

import (
	"fmt"
	"math"
	"strings"

	"futures-signal-engine/internal/market"
)

// ValidationError is one field-level problem found at load time. Validation
// never panics and never surfaces mid-computation: a Config either enters
// the registry valid or is rejected with the full error list.
type ValidationError struct {
	Field   string `json:"field"` // dotted path, e.g. "sizing.full_entry_margin_percent"
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors aggregates all problems of one document.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no validation errors"
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(parts, "; "))
}

const weightSumTolerance = 1e-6

// Validate checks every required field and the cross-field invariants.
// Returns nil when the document is valid.
func Validate(cfg *Config) ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Meta.Name == "" {
		add("meta.name", "required")
	}
	if cfg.Meta.Version == "" {
		add("meta.version", "required")
	}

	// Timeframe weights.
	if len(cfg.TimeframeWeights) == 0 {
		add("timeframe_weights", "required")
	} else {
		sum := 0.0
		for tf, w := range cfg.TimeframeWeights {
			if !tf.Valid() {
				add("timeframe_weights."+string(tf), "unknown timeframe")
			}
			if w < 0 {
				add("timeframe_weights."+string(tf), "weight must be >= 0, got %.2f", w)
			}
			sum += w
		}
		if math.Abs(sum-100) > weightSumTolerance {
			add("timeframe_weights", "must sum to 100, got %.4f", sum)
		}
		for _, tf := range market.AllTimeframes {
			if _, ok := cfg.TimeframeWeights[tf]; !ok {
				add("timeframe_weights."+string(tf), "missing timeframe")
			}
		}
	}

	// Signals.
	s := cfg.Signals
	if s.ActionThreshold <= 0 || s.ActionThreshold > 100 {
		add("signals.action_threshold", "must be in (0,100], got %.2f", s.ActionThreshold)
	}
	if s.DirectionLeadThreshold < 0 {
		add("signals.direction_lead_threshold", "must be >= 0, got %.2f", s.DirectionLeadThreshold)
	}
	if s.SitOnHandsThreshold < 0 || s.SitOnHandsThreshold > s.ActionThreshold {
		add("signals.sit_on_hands_threshold", "must be in [0, action_threshold], got %.2f", s.SitOnHandsThreshold)
	}
	if totalSignalWeight(s.Weights) <= 0 {
		add("signals.weights", "at least one positive signal weight required")
	}
	if s.MACDDeadZonePercent < 0 {
		add("signals.macd_dead_zone_percent", "must be >= 0, got %.4f", s.MACDDeadZonePercent)
	}
	if !(s.GradeA > s.GradeB && s.GradeB > s.GradeC && s.GradeC > s.GradeD) {
		add("signals.grade_a", "grade cutoffs must be strictly descending A > B > C > D")
	}

	// Sizing.
	sz := cfg.Sizing
	if sz.MinEntryConfidence < 0 || sz.MinEntryConfidence > 100 {
		add("sizing.min_entry_confidence", "must be in [0,100], got %.2f", sz.MinEntryConfidence)
	}
	if sz.FullEntryConfidence < sz.MinEntryConfidence {
		add("sizing.full_entry_confidence", "must be >= min_entry_confidence")
	}
	if sz.FullEntryMarginPercent <= 0 || sz.FullEntryMarginPercent > 100 {
		add("sizing.full_entry_margin_percent", "must be in (0,100], got %.2f", sz.FullEntryMarginPercent)
	}
	if sz.CautiousEntryMarginPercent <= 0 || sz.CautiousEntryMarginPercent > sz.FullEntryMarginPercent {
		add("sizing.cautious_entry_margin_percent", "must be in (0, full_entry_margin_percent]")
	}
	if sz.MinFreeMarginPercent < 0 || sz.MinFreeMarginPercent >= 100 {
		add("sizing.min_free_margin_percent", "must be in [0,100), got %.2f", sz.MinFreeMarginPercent)
	}
	if sz.FullEntryMarginPercent+sz.MinFreeMarginPercent > 100 {
		add("sizing.full_entry_margin_percent", "full_entry_margin_percent + min_free_margin_percent must be <= 100")
	}
	if sz.MaxTotalMarginPercent <= 0 || sz.MaxTotalMarginPercent > 100 {
		add("sizing.max_total_margin_percent", "must be in (0,100], got %.2f", sz.MaxTotalMarginPercent)
	}
	if sz.MaxTotalMarginPercent+sz.MinFreeMarginPercent > 100 {
		add("sizing.max_total_margin_percent", "max_total_margin_percent + min_free_margin_percent must be <= 100")
	}
	if sz.FullEntryMarginPercent > sz.MaxTotalMarginPercent {
		add("sizing.full_entry_margin_percent", "must be <= max_total_margin_percent (%.2f)", sz.MaxTotalMarginPercent)
	}
	if sz.Leverage < 1 {
		add("sizing.leverage", "must be >= 1, got %d", sz.Leverage)
	}
	if cfg.Risk.MaxLeverage >= 1 && sz.Leverage > cfg.Risk.MaxLeverage {
		add("sizing.leverage", "exceeds risk.max_leverage (%d)", cfg.Risk.MaxLeverage)
	}

	// DCA.
	d := cfg.DCA
	if d.MaxCount < 0 {
		add("dca.max_count", "must be >= 0, got %d", d.MaxCount)
	}
	if d.MarginPercent <= 0 || d.MarginPercent > 100 {
		add("dca.margin_percent", "must be in (0,100], got %.2f", d.MarginPercent)
	}
	if d.MinDrawdownPercent < 0 {
		add("dca.min_drawdown_percent", "must be >= 0, got %.2f", d.MinDrawdownPercent)
	}
	if d.RSIExhaustionLong < 0 || d.RSIExhaustionLong > 100 {
		add("dca.rsi_exhaustion_long", "must be in [0,100], got %.2f", d.RSIExhaustionLong)
	}
	if d.RSIExhaustionShort < 0 || d.RSIExhaustionShort > 100 {
		add("dca.rsi_exhaustion_short", "must be in [0,100], got %.2f", d.RSIExhaustionShort)
	}

	// Exit.
	e := cfg.Exit
	if e.PressureThreshold <= 0 || e.PressureThreshold > 100 {
		add("exit.pressure_threshold", "must be in (0,100], got %.2f", e.PressureThreshold)
	}
	if e.MinProfitPercent < 0 {
		add("exit.min_profit_percent", "must be >= 0, got %.2f", e.MinProfitPercent)
	}
	if totalExitWeight(e.Weights) <= 0 {
		add("exit.weights", "at least one positive exit weight required")
	}

	// Anti-greed.
	ag := cfg.AntiGreed
	if ag.MinHWMPercent < 0 {
		add("anti_greed.min_hwm_percent", "must be >= 0, got %.2f", ag.MinHWMPercent)
	}
	if ag.DrawdownTriggerPercent <= 0 || ag.DrawdownTriggerPercent > 100 {
		add("anti_greed.drawdown_trigger_percent", "must be in (0,100], got %.2f", ag.DrawdownTriggerPercent)
	}

	// Timebox.
	tb := cfg.Timebox
	if len(tb.Steps) == 0 {
		add("timebox.steps", "required")
	}
	for i, step := range tb.Steps {
		field := fmt.Sprintf("timebox.steps[%d]", i)
		if step.Hours < 0 {
			add(field+".hours", "must be >= 0, got %.2f", step.Hours)
		}
		if step.Pressure < 0 || step.Pressure > 100 {
			add(field+".pressure", "must be in [0,100], got %.2f", step.Pressure)
		}
		if i > 0 {
			if step.Hours <= tb.Steps[i-1].Hours {
				add(field+".hours", "steps must be strictly ascending in hours")
			}
			if step.Pressure < tb.Steps[i-1].Pressure {
				add(field+".pressure", "pressure must be non-decreasing across steps")
			}
		}
	}
	if tb.UrgentHours <= 0 {
		add("timebox.urgent_hours", "must be > 0, got %.2f", tb.UrgentHours)
	}
	if tb.OverdueHours <= tb.UrgentHours {
		add("timebox.overdue_hours", "must be > urgent_hours")
	}

	// Risk.
	if cfg.Risk.MaxLeverage < 1 {
		add("risk.max_leverage", "must be >= 1, got %d", cfg.Risk.MaxLeverage)
	}
	if cfg.Risk.TakerFeePercent < 0 {
		add("risk.taker_fee_percent", "must be >= 0, got %.4f", cfg.Risk.TakerFeePercent)
	}

	// Optional sections are only checked when present.
	if cfg.Liquidation != nil && cfg.Liquidation.MaintenanceMarginRate < 0 {
		add("liquidation.maintenance_margin_rate", "must be >= 0")
	}
	if cfg.KeyLevels != nil {
		if cfg.KeyLevels.SwingWindow < 1 {
			add("key_levels.swing_window", "must be >= 1, got %d", cfg.KeyLevels.SwingWindow)
		}
		if cfg.KeyLevels.ClusterTolerance <= 0 {
			add("key_levels.cluster_tolerance", "must be > 0")
		}
	}
	if cfg.Fibonacci != nil && cfg.Fibonacci.Enabled && cfg.Fibonacci.MinSwingATRRatio <= 0 {
		add("fibonacci.min_swing_atr_ratio", "must be > 0 when enabled")
	}
	if cfg.Session != nil && cfg.Session.Enabled {
		if cfg.Session.QuietHoursUTCStart < 0 || cfg.Session.QuietHoursUTCStart > 23 {
			add("session.quiet_hours_utc_start", "must be in [0,23]")
		}
		if cfg.Session.QuietHoursUTCEnd < 0 || cfg.Session.QuietHoursUTCEnd > 23 {
			add("session.quiet_hours_utc_end", "must be in [0,23]")
		}
	}
	if cfg.SpreadGuard != nil && cfg.SpreadGuard.Enabled && cfg.SpreadGuard.MaxSpreadPercent <= 0 {
		add("spread_guard.max_spread_percent", "must be > 0 when enabled")
	}
	if cfg.Rejection != nil && cfg.Rejection.Enabled && cfg.Rejection.MinWickBodyRatio <= 0 {
		add("rejection.min_wick_body_ratio", "must be > 0 when enabled")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func totalSignalWeight(w SignalWeights) float64 {
	return w.DailyTrend + w.Trend4h + w.Setup1h + w.Entry15m + w.Volume +
		w.BTCAlignment + w.MACDMomentum + w.OrderFlow + w.Liquidity + w.Candlestick
}

func totalExitWeight(w ExitWeights) float64 {
	return w.Timebox + w.Momentum + w.VolumeDryUp + w.AntiGreed + w.MomentumFading + w.TrendReversal
}
