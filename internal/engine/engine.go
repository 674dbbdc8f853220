// Package engine hosts the evaluation pipeline: indicators, regime, chart
// structure and the recommendation engine on the analysis side; sizing, DCA,
// tick refresh and exit evaluation on the position side. Position transitions
// go through a single mutex so concurrent API calls cannot interleave
// open/DCA/close on the same snapshot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"futures-signal-engine/internal/chart"
	"futures-signal-engine/internal/database"
	"futures-signal-engine/internal/exits"
	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/market"
	"futures-signal-engine/internal/position"
	"futures-signal-engine/internal/recommend"
	"futures-signal-engine/internal/regime"
	"futures-signal-engine/internal/strategy"
)

// ErrStrategyRequired is returned when a request names no strategy. There is
// no implicit default: callers pick from the registry explicitly.
var ErrStrategyRequired = errors.New("strategy name required")

// Engine is the evaluation service.
type Engine struct {
	registry *strategy.Registry
	store    *database.RedisPositionStore
	repo     *database.Repository // nil disables history persistence
	logger   zerolog.Logger

	mu sync.Mutex // serializes position transitions
}

// New creates the engine. repo may be nil.
func New(registry *strategy.Registry, store *database.RedisPositionStore, repo *database.Repository, logger zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		repo:     repo,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Registry exposes the strategy registry for read-only listing.
func (e *Engine) Registry() *strategy.Registry {
	return e.registry
}

// History exposes the history repository. Nil when persistence is disabled.
func (e *Engine) History() *database.Repository {
	return e.repo
}

// AnalyzeRequest carries the candle series for one evaluation. The engine
// computes everything else; the same request always yields the same result.
type AnalyzeRequest struct {
	Symbol    string
	Strategy  string
	Series    map[market.Timeframe][]market.Candle
	BTCSeries []market.Candle // higher-timeframe BTC reference, optional
	Aux       *recommend.AuxSignals
	Now       time.Time
}

// AnalysisResult is the full evaluation output.
type AnalysisResult struct {
	Symbol     string                              `json:"symbol"`
	Strategy   string                              `json:"strategy"`
	Indicators map[market.Timeframe]*indicator.Set `json:"indicators"`
	// CompositeTrendScore aggregates the per-timeframe trend scores by the
	// document's timeframe weights, renormalized over the timeframes that
	// actually produced indicators.
	CompositeTrendScore float64                         `json:"composite_trend_score"`
	Regime              regime.Analysis                 `json:"regime"`
	RegimeKnown         bool                            `json:"regime_known"`
	Chart               chart.Context                   `json:"chart"`
	Recommendation      recommend.TradingRecommendation `json:"recommendation"`
	Warnings            []string                        `json:"warnings"`
	GeneratedAt         time.Time                       `json:"generated_at"`
}

// Analyze runs the full pipeline for one symbol.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	cfg, err := e.config(req.Strategy)
	if err != nil {
		return nil, err
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	result := &AnalysisResult{
		Symbol:      req.Symbol,
		Strategy:    req.Strategy,
		Indicators:  make(map[market.Timeframe]*indicator.Set),
		GeneratedAt: req.Now,
	}

	// Indicators per timeframe. A timeframe with too little history is
	// reported as a warning, never silently zero-filled.
	atrs := make(map[market.Timeframe]float64)
	for tf, candles := range req.Series {
		set, err := indicator.Compute(candles)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: %v (%d candles)", tf, err, len(candles)))
			continue
		}
		result.Indicators[tf] = set
		atrs[tf] = set.ATR
	}

	// Weighted multi-timeframe trend aggregate.
	var trendSum, trendWeight float64
	for tf, set := range result.Indicators {
		if w := cfg.TimeframeWeights[tf]; w > 0 {
			trendSum += set.TrendScore * w
			trendWeight += w
		}
	}
	if trendWeight > 0 {
		result.CompositeTrendScore = trendSum / trendWeight
	}

	// Regime from the 4h/1h pair.
	h4 := result.Indicators[market.Timeframe4h]
	h1 := result.Indicators[market.Timeframe1h]
	if h4 != nil && h1 != nil {
		result.Regime = regime.Classify(h4, h1, regimeThresholds(cfg))
		result.RegimeKnown = true
	} else {
		result.Warnings = append(result.Warnings, "regime unavailable: 4h and 1h indicators required")
	}

	// Chart structure across all supplied timeframes.
	result.Chart = chart.Analyze(req.Series, atrs, chartConfig(cfg))

	// Recommendation, with the regime's action threshold applied.
	recInput := recommend.Input{
		Snapshots: result.Indicators,
		Aux:       req.Aux,
		Now:       req.Now,
	}
	if result.RegimeKnown {
		recInput.ActionThresholdOverride = result.Regime.Adjustments.ActionThreshold
	}
	if len(req.BTCSeries) > 0 {
		if btcSet, err := indicator.Compute(req.BTCSeries); err == nil {
			recInput.BTC = btcSet
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("btc reference: %v", err))
		}
	}
	result.Recommendation = recommend.Generate(recInput, cfg)

	e.logger.Info().
		Str("symbol", req.Symbol).
		Str("strategy", req.Strategy).
		Str("action", string(result.Recommendation.Action)).
		Float64("confidence", result.Recommendation.Confidence).
		Str("regime", string(result.Regime.Regime)).
		Msg("Analysis complete")

	if e.repo != nil {
		if err := e.repo.SaveRecommendation(ctx, req.Symbol, req.Strategy, result.Recommendation, result.Regime.Regime); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to persist recommendation")
		}
	}
	return result, nil
}

// OpenRequest opens a position from a recommendation.
type OpenRequest struct {
	Symbol     string
	Strategy   string
	Direction  position.Direction
	Price      float64
	Confidence float64
	Account    position.Account
	Reason     string
	Now        time.Time
}

// OpenPosition sizes and opens the initial entry. A skipped sizing (low
// confidence, no margin) returns the result with no state change and no
// error: declining to trade is a normal outcome.
func (e *Engine) OpenPosition(ctx context.Context, req OpenRequest) (position.State, position.SizingResult, error) {
	cfg, err := e.config(req.Strategy)
	if err != nil {
		return position.State{}, position.SizingResult{}, err
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, err := e.store.Get(ctx, req.Symbol); err == nil && existing.IsOpen {
		return position.State{}, position.SizingResult{}, position.ErrAlreadyOpen
	}

	sizing := position.SizeInitialEntry(req.Confidence, req.Price, req.Account, cfg)
	if sizing.Skip {
		e.logger.Info().Str("symbol", req.Symbol).Str("reason", sizing.Reason).Msg("Entry skipped")
		return position.State{}, sizing, nil
	}

	state, err := position.Open(position.OpenParams{
		Symbol:                req.Symbol,
		Strategy:              req.Strategy,
		Direction:             req.Direction,
		Price:                 req.Price,
		Volume:                sizing.Volume,
		Margin:                sizing.Margin,
		Leverage:              sizing.Leverage,
		Confidence:            req.Confidence,
		Mode:                  sizing.Mode,
		Reason:                req.Reason,
		FeePercent:            cfg.Risk.TakerFeePercent,
		Now:                   req.Now,
		MaintenanceMarginRate: maintenanceRate(cfg),
	})
	if err != nil {
		return position.State{}, sizing, err
	}

	if err := e.store.Save(ctx, state); err != nil {
		return position.State{}, sizing, err
	}
	e.logger.Info().
		Str("symbol", req.Symbol).
		Str("direction", string(req.Direction)).
		Str("mode", string(sizing.Mode)).
		Float64("margin", sizing.Margin).
		Float64("price", req.Price).
		Msg("Position opened")
	return state, sizing, nil
}

// DCARequest evaluates and, when warranted, applies one averaging entry.
type DCARequest struct {
	Symbol     string
	Price      float64
	Indicators *indicator.Set // position timeframe
	HigherTF   *indicator.Set // trend timeframe, may be nil
	Account    position.Account
	Now        time.Time
}

// EvaluateDCA evaluates and applies a DCA entry in one transition. The
// returned signal explains the decision either way.
func (e *Engine) EvaluateDCA(ctx context.Context, req DCARequest) (position.DCASignal, position.State, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Get(ctx, req.Symbol)
	if err != nil {
		return position.DCASignal{}, position.State{}, err
	}
	cfg, err := e.config(state.Strategy)
	if err != nil {
		return position.DCASignal{}, state, err
	}

	signal := position.EvaluateDCA(state, req.Indicators, req.HigherTF, req.Price, cfg)
	if !signal.ShouldDCA {
		return signal, state, nil
	}

	sizing := position.SizeDCAEntry(state, req.Price, req.Account, cfg)
	if sizing.Skip {
		signal.ShouldDCA = false
		signal.Warnings = append(signal.Warnings, "sizing: "+sizing.Reason)
		return signal, state, nil
	}

	next, err := position.AddEntry(state, position.DCAParams{
		Price:                 req.Price,
		Volume:                sizing.Volume,
		Margin:                sizing.Margin,
		Confidence:            signal.Confidence,
		Reason:                fmt.Sprintf("dca level %d at %.2f%% drawdown", signal.DCALevel, signal.DrawdownPercent),
		FeePercent:            cfg.Risk.TakerFeePercent,
		Now:                   req.Now,
		MaintenanceMarginRate: maintenanceRate(cfg),
	})
	if err != nil {
		return signal, state, err
	}
	if err := e.store.Save(ctx, next); err != nil {
		return signal, state, err
	}

	e.logger.Info().
		Str("symbol", req.Symbol).
		Int("dca_level", signal.DCALevel).
		Float64("price", req.Price).
		Float64("new_avg", next.AvgPrice).
		Msg("DCA entry applied")
	return signal, next, nil
}

// TickRequest refreshes mark-to-market state and evaluates exit pressure.
type TickRequest struct {
	Symbol     string
	Price      float64
	Indicators *indicator.Set // position timeframe, may be nil
	HigherTF   *indicator.Set // trend timeframe, may be nil
	Now        time.Time
}

// Tick applies one price tick: refresh, exit evaluation, phase bookkeeping.
func (e *Engine) Tick(ctx context.Context, req TickRequest) (position.State, exits.Signal, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Get(ctx, req.Symbol)
	if err != nil {
		return position.State{}, exits.Signal{}, err
	}
	cfg, err := e.config(state.Strategy)
	if err != nil {
		return state, exits.Signal{}, err
	}

	next := position.RefreshTick(state, req.Price, req.Now)

	// Regime scales the timebox pressure weight when both sets are present.
	timeboxWeight := 0.0
	if req.Indicators != nil && req.HigherTF != nil {
		analysis := regime.Classify(req.HigherTF, req.Indicators, regimeThresholds(cfg))
		timeboxWeight = analysis.Adjustments.TimeboxWeight
	}

	signal := exits.Evaluate(exits.Params{
		State:               next,
		Indicators:          req.Indicators,
		HigherTF:            req.HigherTF,
		Now:                 req.Now,
		RegimeTimeboxWeight: timeboxWeight,
	}, cfg)

	switch {
	case signal.ShouldExit && next.Phase != position.PhaseExiting:
		next = position.WithPhase(next, position.PhaseExitWatch)
	case !signal.ShouldExit && next.Phase == position.PhaseEntry:
		next = position.WithPhase(next, position.PhaseDCAWatch)
	}

	if err := e.store.Save(ctx, next); err != nil {
		return next, signal, err
	}
	return next, signal, nil
}

// ClosePosition terminates the position at the given price, persists the
// outcome and removes the live snapshot.
func (e *Engine) ClosePosition(ctx context.Context, symbol string, price float64, reason string, now time.Time) (position.CloseResult, error) {
	if now.IsZero() {
		now = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.store.Get(ctx, symbol)
	if err != nil {
		return position.CloseResult{}, err
	}
	cfg, err := e.config(state.Strategy)
	if err != nil {
		return position.CloseResult{}, err
	}

	result, err := position.Close(state, price, cfg.Risk.TakerFeePercent, now)
	if err != nil {
		return position.CloseResult{}, err
	}

	if e.repo != nil {
		if err := e.repo.SaveClosedPosition(ctx, result, reason); err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist closed position")
		}
	}
	if err := e.store.Delete(ctx, symbol); err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to delete position snapshot")
	}

	e.logger.Info().
		Str("symbol", symbol).
		Float64("exit_price", price).
		Float64("realized_pnl", result.RealizedPnL).
		Str("reason", reason).
		Msg("Position closed")
	return result, nil
}

// GetPosition returns the live snapshot for a symbol.
func (e *Engine) GetPosition(ctx context.Context, symbol string) (position.State, error) {
	return e.store.Get(ctx, symbol)
}

// Scenario answers "how much volume moves my average to this target".
func (e *Engine) Scenario(ctx context.Context, symbol string, targetAvg, price float64) (position.ScenarioResult, error) {
	state, err := e.store.Get(ctx, symbol)
	if err != nil {
		return position.ScenarioResult{}, err
	}
	if !state.IsOpen {
		return position.ScenarioResult{}, position.ErrNotOpen
	}
	return position.SolveDCAVolume(state.AvgPrice, state.TotalVolume, targetAvg, price, state.Direction)
}

func (e *Engine) config(name string) (*strategy.Config, error) {
	if name == "" {
		return nil, ErrStrategyRequired
	}
	return e.registry.Get(name)
}

func regimeThresholds(cfg *strategy.Config) regime.Thresholds {
	if cfg.Regime != nil {
		return *cfg.Regime
	}
	return regime.Thresholds{}
}

func chartConfig(cfg *strategy.Config) chart.Config {
	cc := chart.DefaultConfig()
	if cfg.KeyLevels != nil {
		if cfg.KeyLevels.SwingWindow > 0 {
			cc.SwingWindow = cfg.KeyLevels.SwingWindow
		}
		if cfg.KeyLevels.ClusterTolerance > 0 {
			cc.ClusterTolerance = cfg.KeyLevels.ClusterTolerance
		}
		if cfg.KeyLevels.ConfluenceTolerance > 0 {
			cc.ConfluenceTolerance = cfg.KeyLevels.ConfluenceTolerance
		}
	}
	if cfg.Fibonacci != nil {
		cc.FibonacciEnabled = cfg.Fibonacci.Enabled
		if cfg.Fibonacci.MinSwingATRRatio > 0 {
			cc.FibMinSwingATRRatio = cfg.Fibonacci.MinSwingATRRatio
		}
	}
	return cc
}

func maintenanceRate(cfg *strategy.Config) float64 {
	if cfg.Liquidation != nil {
		return cfg.Liquidation.MaintenanceMarginRate
	}
	return 0
}
