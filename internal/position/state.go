// Package position models a leveraged position through its whole life:
// initial entry, averaging entries, per-tick refresh and close. No function
// here mutates state in place. Every transition takes the prior value and
// returns a new one, so a position's history can be replayed deterministically
// in tests and after restarts.
package position

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Direction of a position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Phase is the lifecycle stage of a tracked position.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseEntry     Phase = "entry"
	PhaseDCAWatch  Phase = "dca_watch"
	PhaseInDCA     Phase = "in_dca"
	PhaseExitWatch Phase = "exit_watch"
	PhaseExiting   Phase = "exiting"
	PhaseClosed    Phase = "closed"
)

// EntryKind distinguishes the opening entry from averaging entries.
type EntryKind string

const (
	EntryInitial EntryKind = "initial"
	EntryDCA     EntryKind = "dca"
)

// EntryMode records how aggressively the entry was sized.
type EntryMode string

const (
	ModeFull     EntryMode = "full"
	ModeCautious EntryMode = "cautious"
)

// EntryRecord is one fill that contributed to the position. Records are
// append-only: once in the Entries slice they are never modified.
type EntryRecord struct {
	ID         string    `json:"id"`
	Kind       EntryKind `json:"kind"`
	DCALevel   int       `json:"dca_level"` // 0 for the initial entry
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"` // base-asset quantity
	MarginUsed float64   `json:"margin_used"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Mode       EntryMode `json:"mode"`
	Reason     string    `json:"reason"`
}

// State is the full position snapshot. It is a value: transitions copy it.
type State struct {
	Symbol    string    `json:"symbol"`
	Strategy  string    `json:"strategy"`
	IsOpen    bool      `json:"is_open"`
	Direction Direction `json:"direction"`
	Phase     Phase     `json:"phase"`

	Entries         []EntryRecord `json:"entries"`
	AvgPrice        float64       `json:"avg_price"`
	TotalVolume     float64       `json:"total_volume"`
	TotalMarginUsed float64       `json:"total_margin_used"`
	DCACount        int           `json:"dca_count"`

	UnrealizedPnL        float64 `json:"unrealized_pnl"`         // quote currency
	UnrealizedPnLPercent float64 `json:"unrealized_pnl_percent"` // on margin (ROI)
	NotionalPnLPercent   float64 `json:"notional_pnl_percent"`   // on position notional
	HighWaterMarkPnL     float64 `json:"high_water_mark_pnl"`
	DrawdownFromHWM      float64 `json:"drawdown_from_hwm"` // % retraced from HWM

	OpenedAt      time.Time `json:"opened_at"`
	TimeInTradeMs int64     `json:"time_in_trade_ms"`

	LiquidationPrice           float64 `json:"liquidation_price"`
	LiquidationDistancePercent float64 `json:"liquidation_distance_percent"`

	Leverage  int     `json:"leverage"`
	TotalFees float64 `json:"total_fees"`

	LastPrice float64 `json:"last_price"`
}

// Transition errors.
var (
	ErrAlreadyOpen  = errors.New("position already open")
	ErrNotOpen      = errors.New("position not open")
	ErrInvalidEntry = errors.New("invalid entry parameters")
)

// OpenParams describes the initial entry.
type OpenParams struct {
	Symbol     string
	Strategy   string
	Direction  Direction
	Price      float64
	Volume     float64
	Margin     float64
	Leverage   int
	Confidence float64
	Mode       EntryMode
	Reason     string
	FeePercent float64
	Now        time.Time
	// MaintenanceMarginRate overrides the default 0.2/leverage model when
	// positive.
	MaintenanceMarginRate float64
}

// Open creates a new position from the initial entry (idle -> entry).
func Open(p OpenParams) (State, error) {
	if p.Price <= 0 || p.Volume <= 0 || p.Margin <= 0 || p.Leverage < 1 {
		return State{}, ErrInvalidEntry
	}
	if p.Direction != Long && p.Direction != Short {
		return State{}, ErrInvalidEntry
	}

	entry := EntryRecord{
		ID:         uuid.NewString(),
		Kind:       EntryInitial,
		DCALevel:   0,
		Price:      p.Price,
		Volume:     p.Volume,
		MarginUsed: p.Margin,
		Timestamp:  p.Now,
		Confidence: p.Confidence,
		Mode:       p.Mode,
		Reason:     p.Reason,
	}

	fee := p.Price * p.Volume * p.FeePercent / 100

	s := State{
		Symbol:          p.Symbol,
		Strategy:        p.Strategy,
		IsOpen:          true,
		Direction:       p.Direction,
		Phase:           PhaseEntry,
		Entries:         []EntryRecord{entry},
		AvgPrice:        p.Price,
		TotalVolume:     p.Volume,
		TotalMarginUsed: p.Margin,
		OpenedAt:        p.Now,
		Leverage:        p.Leverage,
		TotalFees:       fee,
		LastPrice:       p.Price,
	}
	s.LiquidationPrice = liquidationPrice(s.AvgPrice, s.Direction, s.Leverage, p.MaintenanceMarginRate)
	s.LiquidationDistancePercent = liquidationDistance(s.LiquidationPrice, p.Price, s.Direction)
	return s, nil
}

// DCAParams describes one averaging entry.
type DCAParams struct {
	Price                 float64
	Volume                float64
	Margin                float64
	Confidence            float64
	Reason                string
	FeePercent            float64
	Now                   time.Time
	MaintenanceMarginRate float64
}

// AddEntry appends an averaging entry and recomputes the volume-weighted
// average price, margin and liquidation estimate. The prior state is left
// untouched.
func AddEntry(s State, p DCAParams) (State, error) {
	if !s.IsOpen {
		return State{}, ErrNotOpen
	}
	if p.Price <= 0 || p.Volume <= 0 || p.Margin <= 0 {
		return State{}, ErrInvalidEntry
	}

	next := clone(s)
	next.Entries = append(next.Entries, EntryRecord{
		ID:         uuid.NewString(),
		Kind:       EntryDCA,
		DCALevel:   s.DCACount + 1,
		Price:      p.Price,
		Volume:     p.Volume,
		MarginUsed: p.Margin,
		Timestamp:  p.Now,
		Confidence: p.Confidence,
		Mode:       ModeCautious,
		Reason:     p.Reason,
	})

	// newAvg = sum(price*volume) / sum(volume) across all entries.
	notional := s.AvgPrice*s.TotalVolume + p.Price*p.Volume
	next.TotalVolume = s.TotalVolume + p.Volume
	next.AvgPrice = notional / next.TotalVolume
	next.TotalMarginUsed = s.TotalMarginUsed + p.Margin
	next.DCACount = s.DCACount + 1
	next.TotalFees = s.TotalFees + p.Price*p.Volume*p.FeePercent/100
	next.Phase = PhaseInDCA

	next.LiquidationPrice = liquidationPrice(next.AvgPrice, next.Direction, next.Leverage, p.MaintenanceMarginRate)
	next.LiquidationDistancePercent = liquidationDistance(next.LiquidationPrice, p.Price, next.Direction)
	next.LastPrice = p.Price
	return next, nil
}

// RefreshTick recomputes the mark-to-market fields against the current
// price: P&L, high-water mark, drawdown, time in trade and distance to
// liquidation. Pure: (state, price, now) -> new state.
func RefreshTick(s State, currentPrice float64, now time.Time) State {
	if !s.IsOpen || currentPrice <= 0 {
		return s
	}

	next := clone(s)
	next.LastPrice = currentPrice

	if s.Direction == Long {
		next.UnrealizedPnL = (currentPrice - s.AvgPrice) * s.TotalVolume
	} else {
		next.UnrealizedPnL = (s.AvgPrice - currentPrice) * s.TotalVolume
	}
	if s.TotalMarginUsed > 0 {
		next.UnrealizedPnLPercent = next.UnrealizedPnL / s.TotalMarginUsed * 100
	}
	notional := s.AvgPrice * s.TotalVolume
	if notional > 0 {
		next.NotionalPnLPercent = next.UnrealizedPnL / notional * 100
	}

	next.HighWaterMarkPnL = s.HighWaterMarkPnL
	if next.UnrealizedPnL > next.HighWaterMarkPnL {
		next.HighWaterMarkPnL = next.UnrealizedPnL
	}
	next.DrawdownFromHWM = 0
	if next.HighWaterMarkPnL > 0 {
		next.DrawdownFromHWM = (next.HighWaterMarkPnL - next.UnrealizedPnL) / next.HighWaterMarkPnL * 100
	}

	next.TimeInTradeMs = now.Sub(s.OpenedAt).Milliseconds()

	// Distance to liquidation always reflects the current price, not the
	// entry price.
	next.LiquidationDistancePercent = liquidationDistance(s.LiquidationPrice, currentPrice, s.Direction)

	return next
}

// WithPhase returns a copy in the given phase. Used by the host engine to
// move between watch phases without touching the numeric state.
func WithPhase(s State, phase Phase) State {
	next := clone(s)
	next.Phase = phase
	return next
}

// CloseResult summarizes a terminated position.
type CloseResult struct {
	State       State     `json:"state"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnL float64   `json:"realized_pnl"` // net of fees
	TotalFees   float64   `json:"total_fees"`
	ClosedAt    time.Time `json:"closed_at"`
	HoldingMs   int64     `json:"holding_ms"`
}

// Close terminates the position at the given price (-> closed).
func Close(s State, price float64, feePercent float64, now time.Time) (CloseResult, error) {
	if !s.IsOpen {
		return CloseResult{}, ErrNotOpen
	}
	if price <= 0 {
		return CloseResult{}, ErrInvalidEntry
	}

	refreshed := RefreshTick(s, price, now)
	exitFee := price * s.TotalVolume * feePercent / 100

	next := clone(refreshed)
	next.IsOpen = false
	next.Phase = PhaseClosed
	next.TotalFees = refreshed.TotalFees + exitFee

	return CloseResult{
		State:       next,
		ExitPrice:   price,
		RealizedPnL: refreshed.UnrealizedPnL - next.TotalFees,
		TotalFees:   next.TotalFees,
		ClosedAt:    now,
		HoldingMs:   next.TimeInTradeMs,
	}, nil
}

// clone deep-copies the state, including the entries slice, so appends on
// the copy never alias the original.
func clone(s State) State {
	next := s
	next.Entries = make([]EntryRecord, len(s.Entries))
	copy(next.Entries, s.Entries)
	return next
}
