package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"futures-signal-engine/internal/position"
	"futures-signal-engine/internal/recommend"
	"futures-signal-engine/internal/regime"
)

// Repository provides history persistence on top of the PostgreSQL pool.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecommendationRecord is one persisted evaluation result.
type RecommendationRecord struct {
	ID            int       `json:"id"`
	Symbol        string    `json:"symbol"`
	Strategy      string    `json:"strategy"`
	Action        string    `json:"action"`
	Confidence    float64   `json:"confidence"`
	LongStrength  float64   `json:"long_strength"`
	ShortStrength float64   `json:"short_strength"`
	Regime        string    `json:"regime"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// SaveRecommendation persists one evaluation, storing the full breakdown as
// JSONB detail alongside the queryable columns.
func (r *Repository) SaveRecommendation(ctx context.Context, symbol, strategy string, rec recommend.TradingRecommendation, reg regime.Regime) error {
	detail, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}

	query := `
		INSERT INTO recommendations
			(symbol, strategy, action, confidence, long_strength, short_strength, regime, reason, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Pool.Exec(ctx, query,
		symbol, strategy, string(rec.Action), rec.Confidence,
		rec.Long.Strength, rec.Short.Strength, string(reg), rec.Reason, detail)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// ListRecommendations returns the most recent evaluations for a symbol.
func (r *Repository) ListRecommendations(ctx context.Context, symbol string, limit int) ([]RecommendationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, strategy, action, confidence, long_strength, short_strength,
		       COALESCE(regime, ''), COALESCE(reason, ''), created_at
		FROM recommendations
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var records []RecommendationRecord
	for rows.Next() {
		var rec RecommendationRecord
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Strategy, &rec.Action, &rec.Confidence,
			&rec.LongStrength, &rec.ShortStrength, &rec.Regime, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ClosedPositionRecord is one completed trade's outcome.
type ClosedPositionRecord struct {
	ID                 int       `json:"id"`
	Symbol             string    `json:"symbol"`
	Direction          string    `json:"direction"`
	Strategy           string    `json:"strategy"`
	AvgEntryPrice      float64   `json:"avg_entry_price"`
	ExitPrice          float64   `json:"exit_price"`
	TotalVolume        float64   `json:"total_volume"`
	TotalMargin        float64   `json:"total_margin"`
	Leverage           int       `json:"leverage"`
	EntryCount         int       `json:"entry_count"`
	DCACount           int       `json:"dca_count"`
	RealizedPnL        float64   `json:"realized_pnl"`
	RealizedPnLPercent float64   `json:"realized_pnl_percent"`
	TotalFees          float64   `json:"total_fees"`
	TimeInTradeMs      int64     `json:"time_in_trade_ms"`
	ExitReason         string    `json:"exit_reason"`
	OpenedAt           time.Time `json:"opened_at"`
	ClosedAt           time.Time `json:"closed_at"`
}

// SaveClosedPosition records the final outcome of a closed position.
func (r *Repository) SaveClosedPosition(ctx context.Context, res position.CloseResult, exitReason string) error {
	s := res.State
	pnlPercent := 0.0
	if s.TotalMarginUsed > 0 {
		pnlPercent = res.RealizedPnL / s.TotalMarginUsed * 100
	}

	query := `
		INSERT INTO closed_positions
			(symbol, direction, strategy, avg_entry_price, exit_price, total_volume,
			 total_margin, leverage, entry_count, dca_count, realized_pnl,
			 realized_pnl_percent, total_fees, time_in_trade_ms, exit_reason,
			 opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Pool.Exec(ctx, query,
		s.Symbol, string(s.Direction), s.Strategy, s.AvgPrice, res.ExitPrice, s.TotalVolume,
		s.TotalMarginUsed, s.Leverage, len(s.Entries), s.DCACount, res.RealizedPnL,
		pnlPercent, res.TotalFees, res.HoldingMs, exitReason,
		s.OpenedAt, res.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert closed position: %w", err)
	}
	return nil
}

// ListClosedPositions returns the most recently closed trades for a symbol.
// An empty symbol returns all symbols.
func (r *Repository) ListClosedPositions(ctx context.Context, symbol string, limit int) ([]ClosedPositionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, direction, strategy, avg_entry_price, exit_price, total_volume,
		       total_margin, leverage, entry_count, dca_count, realized_pnl,
		       realized_pnl_percent, total_fees, time_in_trade_ms, COALESCE(exit_reason, ''),
		       opened_at, closed_at
		FROM closed_positions
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY closed_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed positions: %w", err)
	}
	defer rows.Close()

	var records []ClosedPositionRecord
	for rows.Next() {
		var rec ClosedPositionRecord
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Direction, &rec.Strategy,
			&rec.AvgEntryPrice, &rec.ExitPrice, &rec.TotalVolume, &rec.TotalMargin,
			&rec.Leverage, &rec.EntryCount, &rec.DCACount, &rec.RealizedPnL,
			&rec.RealizedPnLPercent, &rec.TotalFees, &rec.TimeInTradeMs, &rec.ExitReason,
			&rec.OpenedAt, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan closed position: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
