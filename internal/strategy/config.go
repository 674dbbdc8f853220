// Package strategy defines the versioned strategy configuration document,
// its defaults and load-time validation, and the immutable registry the
// engine reads strategies from. A Config that passed validation is treated
// as read-only for the lifetime of every computation referencing it.
package strategy

import (
	"futures-signal-engine/internal/market"
	"futures-signal-engine/internal/regime"
)

// Meta identifies a strategy document.
type Meta struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

// SignalsConfig holds the recommendation engine's weights and thresholds.
// The engine itself is threshold-agnostic: every cutoff lives here.
type SignalsConfig struct {
	// Action selection.
	ActionThreshold        float64 `json:"action_threshold" yaml:"action_threshold"`                 // strength needed to fire LONG/SHORT
	DirectionLeadThreshold float64 `json:"direction_lead_threshold" yaml:"direction_lead_threshold"` // winner must lead loser by this much
	SitOnHandsThreshold    float64 `json:"sit_on_hands_threshold" yaml:"sit_on_hands_threshold"`     // above this a WAIT is reported as "forming"

	// Weighted strength signals. Zero-weight signals are excluded from the
	// normalization denominator.
	Weights SignalWeights `json:"weights" yaml:"weights"`

	// Checklist rubric cutoffs.
	MinSetupScore float64 `json:"min_setup_score" yaml:"min_setup_score"` // 1h setup rubric, out of 10
	MinEntryScore float64 `json:"min_entry_score" yaml:"min_entry_score"` // 15m oscillator timing score

	// MACD momentum dead zone: histogram magnitudes below this fraction of
	// price are treated as no signal rather than direction.
	MACDDeadZonePercent float64 `json:"macd_dead_zone_percent" yaml:"macd_dead_zone_percent"`

	// Grade cutoffs on strength.
	GradeA float64 `json:"grade_a" yaml:"grade_a"`
	GradeB float64 `json:"grade_b" yaml:"grade_b"`
	GradeC float64 `json:"grade_c" yaml:"grade_c"`
	GradeD float64 `json:"grade_d" yaml:"grade_d"`
}

// SignalWeights are the per-signal contributions to direction strength.
type SignalWeights struct {
	DailyTrend   float64 `json:"daily_trend" yaml:"daily_trend"`
	Trend4h      float64 `json:"trend_4h" yaml:"trend_4h"`
	Setup1h      float64 `json:"setup_1h" yaml:"setup_1h"`
	Entry15m     float64 `json:"entry_15m" yaml:"entry_15m"`
	Volume       float64 `json:"volume" yaml:"volume"`
	BTCAlignment float64 `json:"btc_alignment" yaml:"btc_alignment"`
	MACDMomentum float64 `json:"macd_momentum" yaml:"macd_momentum"`
	OrderFlow    float64 `json:"order_flow" yaml:"order_flow"`
	Liquidity    float64 `json:"liquidity" yaml:"liquidity"`
	Candlestick  float64 `json:"candlestick" yaml:"candlestick"`
}

// SizingConfig controls initial entry sizing.
type SizingConfig struct {
	MinEntryConfidence         float64 `json:"min_entry_confidence" yaml:"min_entry_confidence"`                   // below this: skip
	FullEntryConfidence        float64 `json:"full_entry_confidence" yaml:"full_entry_confidence"`                 // at/above this: full mode
	FullEntryMarginPercent     float64 `json:"full_entry_margin_percent" yaml:"full_entry_margin_percent"`         // % of available margin
	CautiousEntryMarginPercent float64 `json:"cautious_entry_margin_percent" yaml:"cautious_entry_margin_percent"` // % of available margin
	MinFreeMarginPercent       float64 `json:"min_free_margin_percent" yaml:"min_free_margin_percent"`             // never allocate past this reserve
	MaxTotalMarginPercent      float64 `json:"max_total_margin_percent" yaml:"max_total_margin_percent"`           // cap across all entries, % of equity
	Leverage                   int     `json:"leverage" yaml:"leverage"`
}

// DCAConfig controls averaging entries.
type DCAConfig struct {
	MaxCount             int     `json:"max_count" yaml:"max_count"`
	MarginPercent        float64 `json:"margin_percent" yaml:"margin_percent"`                 // % of equity per DCA
	MinDrawdownPercent   float64 `json:"min_drawdown_percent" yaml:"min_drawdown_percent"`     // adverse move before a DCA is considered
	MinConfidence        float64 `json:"min_confidence" yaml:"min_confidence"`                 // composite DCA confidence gate
	RSIExhaustionLong    float64 `json:"rsi_exhaustion_long" yaml:"rsi_exhaustion_long"`       // oversold gate for long DCA
	RSIExhaustionShort   float64 `json:"rsi_exhaustion_short" yaml:"rsi_exhaustion_short"`     // overbought gate for short DCA
	VolumeCapitulation   float64 `json:"volume_capitulation" yaml:"volume_capitulation"`       // volume ratio indicating a flush
	RequireTrendIntact   bool    `json:"require_trend_intact" yaml:"require_trend_intact"`     // block DCA when the 4h trend flipped
	StepDrawdownPercent  float64 `json:"step_drawdown_percent" yaml:"step_drawdown_percent"`   // extra drawdown required per prior DCA
}

// ExitConfig holds exit-pressure weights and the hard profit guards.
type ExitConfig struct {
	PressureThreshold float64 `json:"pressure_threshold" yaml:"pressure_threshold"` // composite pressure needed to exit
	MinProfitPercent  float64 `json:"min_profit_percent" yaml:"min_profit_percent"` // PnL floor; exits below this never fire

	Weights ExitWeights `json:"weights" yaml:"weights"`
}

// ExitWeights are the per-source weights of the composite exit pressure.
type ExitWeights struct {
	Timebox        float64 `json:"timebox" yaml:"timebox"`
	Momentum       float64 `json:"momentum" yaml:"momentum"`
	VolumeDryUp    float64 `json:"volume_dry_up" yaml:"volume_dry_up"`
	AntiGreed      float64 `json:"anti_greed" yaml:"anti_greed"`
	MomentumFading float64 `json:"momentum_fading" yaml:"momentum_fading"`
	TrendReversal  float64 `json:"trend_reversal" yaml:"trend_reversal"`
}

// AntiGreedConfig gates the high-water-mark drawdown pressure.
type AntiGreedConfig struct {
	MinHWMPercent          float64 `json:"min_hwm_percent" yaml:"min_hwm_percent"`                   // HWM must have reached this PnL%
	MinPnLPercent          float64 `json:"min_pnl_percent" yaml:"min_pnl_percent"`                   // current PnL% must still clear this
	DrawdownTriggerPercent float64 `json:"drawdown_trigger_percent" yaml:"drawdown_trigger_percent"` // retrace from HWM that maxes the pressure
}

// TimeboxStep maps hours-in-trade to a base pressure value. Steps must be
// ascending in hours; pressure between steps is linearly interpolated.
type TimeboxStep struct {
	Hours    float64 `json:"hours" yaml:"hours"`
	Pressure float64 `json:"pressure" yaml:"pressure"`
}

// TimeboxConfig is the soft maximum holding duration schedule.
type TimeboxConfig struct {
	Steps        []TimeboxStep `json:"steps" yaml:"steps"`
	UrgentHours  float64       `json:"urgent_hours" yaml:"urgent_hours"`   // composite pressure floor 50 past this
	OverdueHours float64       `json:"overdue_hours" yaml:"overdue_hours"` // composite pressure floor 90 past this
}

// RiskConfig holds account-level limits.
type RiskConfig struct {
	MaxLeverage     int     `json:"max_leverage" yaml:"max_leverage"`
	TakerFeePercent float64 `json:"taker_fee_percent" yaml:"taker_fee_percent"`
}

// ---------------------------------------------------------------------------
// Optional sections. Each is a pointer: nil means "feature disabled / use
// engine defaults" and is resolved exactly once at load time, never by
// optional-chaining at computation time.
// ---------------------------------------------------------------------------

// LiquidationConfig overrides the liquidation price model.
type LiquidationConfig struct {
	// MaintenanceMarginRate overrides the default 0.2/leverage model when
	// positive. The cross-margin model from live exchanges is out of scope
	// here; see DESIGN.md for the open question around model selection.
	MaintenanceMarginRate float64 `json:"maintenance_margin_rate" yaml:"maintenance_margin_rate"`
	WarnDistancePercent   float64 `json:"warn_distance_percent" yaml:"warn_distance_percent"`
}

// KeyLevelsConfig tunes the chart structure analyzer.
type KeyLevelsConfig struct {
	SwingWindow         int     `json:"swing_window" yaml:"swing_window"`
	ClusterTolerance    float64 `json:"cluster_tolerance" yaml:"cluster_tolerance"`
	ConfluenceTolerance float64 `json:"confluence_tolerance" yaml:"confluence_tolerance"`
}

// FibonacciConfig enables ATR-gated retracement levels.
type FibonacciConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	MinSwingATRRatio float64 `json:"min_swing_atr_ratio" yaml:"min_swing_atr_ratio"`
}

// SessionConfig scales confidence by trading session activity.
type SessionConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	QuietHoursUTCStart int     `json:"quiet_hours_utc_start" yaml:"quiet_hours_utc_start"`
	QuietHoursUTCEnd   int     `json:"quiet_hours_utc_end" yaml:"quiet_hours_utc_end"`
	QuietPenalty       float64 `json:"quiet_penalty" yaml:"quiet_penalty"`
}

// SpreadGuardConfig blocks entries on wide spreads.
type SpreadGuardConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	MaxSpreadPercent float64 `json:"max_spread_percent" yaml:"max_spread_percent"`
}

// DerivativesConfig feeds funding/open-interest confidence adjustments.
type DerivativesConfig struct {
	Enabled               bool    `json:"enabled" yaml:"enabled"`
	MaxFundingRatePercent float64 `json:"max_funding_rate_percent" yaml:"max_funding_rate_percent"`
}

// RejectionConfig adds the optional wick-rejection checklist item.
type RejectionConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	MinWickBodyRatio float64 `json:"min_wick_body_ratio" yaml:"min_wick_body_ratio"`
}

// Config is the complete strategy document. Required sections are values;
// optional sections are pointers resolved at load time.
type Config struct {
	Meta Meta `json:"meta" yaml:"meta"`

	// TimeframeWeights must sum to exactly 100 across the evaluated
	// timeframes.
	TimeframeWeights map[market.Timeframe]float64 `json:"timeframe_weights" yaml:"timeframe_weights"`

	Signals   SignalsConfig   `json:"signals" yaml:"signals"`
	Sizing    SizingConfig    `json:"sizing" yaml:"sizing"`
	DCA       DCAConfig       `json:"dca" yaml:"dca"`
	Exit      ExitConfig      `json:"exit" yaml:"exit"`
	AntiGreed AntiGreedConfig `json:"anti_greed" yaml:"anti_greed"`
	Timebox   TimeboxConfig   `json:"timebox" yaml:"timebox"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`

	Regime      *regime.Thresholds `json:"regime,omitempty" yaml:"regime,omitempty"`
	Liquidation *LiquidationConfig `json:"liquidation,omitempty" yaml:"liquidation,omitempty"`
	KeyLevels   *KeyLevelsConfig   `json:"key_levels,omitempty" yaml:"key_levels,omitempty"`
	Fibonacci   *FibonacciConfig   `json:"fibonacci,omitempty" yaml:"fibonacci,omitempty"`
	Session     *SessionConfig     `json:"session,omitempty" yaml:"session,omitempty"`
	SpreadGuard *SpreadGuardConfig `json:"spread_guard,omitempty" yaml:"spread_guard,omitempty"`
	Derivatives *DerivativesConfig `json:"derivatives,omitempty" yaml:"derivatives,omitempty"`
	Rejection   *RejectionConfig   `json:"rejection,omitempty" yaml:"rejection,omitempty"`
}

// Default returns a complete, valid baseline strategy. Loaded documents are
// merged over these values field by field where sections are omitted.
func Default() *Config {
	return &Config{
		Meta: Meta{
			Name:        "baseline",
			Version:     "1.0.0",
			Description: "Conservative multi-timeframe swing baseline",
		},
		TimeframeWeights: map[market.Timeframe]float64{
			market.Timeframe5m:  5,
			market.Timeframe15m: 15,
			market.Timeframe1h:  25,
			market.Timeframe4h:  35,
			market.Timeframe1d:  20,
		},
		Signals: SignalsConfig{
			ActionThreshold:        65,
			DirectionLeadThreshold: 15,
			SitOnHandsThreshold:    50,
			Weights: SignalWeights{
				DailyTrend:   15,
				Trend4h:      20,
				Setup1h:      15,
				Entry15m:     12,
				Volume:       10,
				BTCAlignment: 8,
				MACDMomentum: 10,
				OrderFlow:    4,
				Liquidity:    3,
				Candlestick:  3,
			},
			MinSetupScore:       4,
			MinEntryScore:       3,
			MACDDeadZonePercent: 0.02,
			GradeA:              80,
			GradeB:              70,
			GradeC:              60,
			GradeD:              50,
		},
		Sizing: SizingConfig{
			MinEntryConfidence:         55,
			FullEntryConfidence:        75,
			FullEntryMarginPercent:     30,
			CautiousEntryMarginPercent: 15,
			MinFreeMarginPercent:       20,
			MaxTotalMarginPercent:      60,
			Leverage:                   5,
		},
		DCA: DCAConfig{
			MaxCount:            3,
			MarginPercent:       10,
			MinDrawdownPercent:  3,
			MinConfidence:       60,
			RSIExhaustionLong:   30,
			RSIExhaustionShort:  70,
			VolumeCapitulation:  1.8,
			RequireTrendIntact:  true,
			StepDrawdownPercent: 2,
		},
		Exit: ExitConfig{
			PressureThreshold: 70,
			MinProfitPercent:  0.5,
			Weights: ExitWeights{
				Timebox:        1.0,
				Momentum:       1.2,
				VolumeDryUp:    0.8,
				AntiGreed:      1.5,
				MomentumFading: 1.0,
				TrendReversal:  1.3,
			},
		},
		AntiGreed: AntiGreedConfig{
			MinHWMPercent:          2.0,
			MinPnLPercent:          0.5,
			DrawdownTriggerPercent: 40,
		},
		Timebox: TimeboxConfig{
			Steps: []TimeboxStep{
				{Hours: 0, Pressure: 0},
				{Hours: 12, Pressure: 15},
				{Hours: 24, Pressure: 35},
				{Hours: 36, Pressure: 60},
				{Hours: 48, Pressure: 90},
			},
			UrgentHours:  36,
			OverdueHours: 48,
		},
		Risk: RiskConfig{
			MaxLeverage:     20,
			TakerFeePercent: 0.05,
		},
	}
}
