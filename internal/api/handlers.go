package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"futures-signal-engine/internal/database"
	"futures-signal-engine/internal/engine"
	"futures-signal-engine/internal/indicator"
	"futures-signal-engine/internal/market"
	"futures-signal-engine/internal/position"
	"futures-signal-engine/internal/recommend"
	"futures-signal-engine/internal/strategy"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"strategies": s.engine.Registry().Len(),
		"ws_clients": s.hub.ClientCount(),
		"time":       time.Now().UTC(),
	})
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

type analyzeRequest struct {
	Symbol    string                                `json:"symbol" binding:"required"`
	Strategy  string                                `json:"strategy" binding:"required"`
	Series    map[market.Timeframe][]market.Candle  `json:"series" binding:"required"`
	BTCSeries []market.Candle                       `json:"btc_series"`
	Aux       *recommend.AuxSignals                 `json:"aux"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for tf := range req.Series {
		if !tf.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe: " + string(tf)})
			return
		}
	}

	result, err := s.engine.Analyze(c.Request.Context(), engine.AnalyzeRequest{
		Symbol:    req.Symbol,
		Strategy:  req.Strategy,
		Series:    req.Series,
		BTCSeries: req.BTCSeries,
		Aux:       req.Aux,
		Now:       time.Now(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.hub.BroadcastJSON("analysis", result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListStrategies(c *gin.Context) {
	names := s.engine.Registry().Names()
	list := make([]gin.H, 0, len(names))
	for _, name := range names {
		cfg, err := s.engine.Registry().Get(name)
		if err != nil {
			continue
		}
		list = append(list, gin.H{
			"name":        cfg.Meta.Name,
			"version":     cfg.Meta.Version,
			"description": cfg.Meta.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": list})
}

// ---------------------------------------------------------------------------
// Position lifecycle
// ---------------------------------------------------------------------------

type openRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Strategy   string  `json:"strategy" binding:"required"`
	Direction  string  `json:"direction" binding:"required"`
	Price      float64 `json:"price" binding:"required"`
	Confidence float64 `json:"confidence"`
	Equity     float64 `json:"equity" binding:"required"`
	Available  float64 `json:"available_margin" binding:"required"`
	Reason     string  `json:"reason"`
}

func (s *Server) handleOpenPosition(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dir := position.Direction(req.Direction)
	if dir != position.Long && dir != position.Short {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be long or short"})
		return
	}

	state, sizing, err := s.engine.OpenPosition(c.Request.Context(), engine.OpenRequest{
		Symbol:     req.Symbol,
		Strategy:   req.Strategy,
		Direction:  dir,
		Price:      req.Price,
		Confidence: req.Confidence,
		Account:    position.Account{Equity: req.Equity, AvailableMargin: req.Available},
		Reason:     req.Reason,
		Now:        time.Now(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if sizing.Skip {
		c.JSON(http.StatusOK, gin.H{"opened": false, "sizing": sizing})
		return
	}

	s.hub.BroadcastJSON("position_opened", state)
	c.JSON(http.StatusOK, gin.H{"opened": true, "sizing": sizing, "position": state})
}

type dcaRequest struct {
	Symbol    string                               `json:"symbol" binding:"required"`
	Price     float64                              `json:"price" binding:"required"`
	Series    map[market.Timeframe][]market.Candle `json:"series" binding:"required"`
	Equity    float64                              `json:"equity" binding:"required"`
	Available float64                              `json:"available_margin" binding:"required"`
}

func (s *Server) handleDCA(c *gin.Context) {
	var req dcaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ind, higher := s.computeTickSets(req.Series)
	signal, state, err := s.engine.EvaluateDCA(c.Request.Context(), engine.DCARequest{
		Symbol:     req.Symbol,
		Price:      req.Price,
		Indicators: ind,
		HigherTF:   higher,
		Account:    position.Account{Equity: req.Equity, AvailableMargin: req.Available},
		Now:        time.Now(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	if signal.ShouldDCA {
		s.hub.BroadcastJSON("position_dca", state)
	}
	c.JSON(http.StatusOK, gin.H{"signal": signal, "position": state})
}

type tickRequest struct {
	Symbol string                               `json:"symbol" binding:"required"`
	Price  float64                              `json:"price" binding:"required"`
	Series map[market.Timeframe][]market.Candle `json:"series"`
}

func (s *Server) handleTick(c *gin.Context) {
	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ind, higher := s.computeTickSets(req.Series)
	state, signal, err := s.engine.Tick(c.Request.Context(), engine.TickRequest{
		Symbol:     req.Symbol,
		Price:      req.Price,
		Indicators: ind,
		HigherTF:   higher,
		Now:        time.Now(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.hub.BroadcastJSON("position_tick", gin.H{"position": state, "exit_signal": signal})
	c.JSON(http.StatusOK, gin.H{"position": state, "exit_signal": signal})
}

type closeRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Price  float64 `json:"price" binding:"required"`
	Reason string  `json:"reason"`
}

func (s *Server) handleClosePosition(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.ClosePosition(c.Request.Context(), req.Symbol, req.Price, req.Reason, time.Now())
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.hub.BroadcastJSON("position_closed", result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetPosition(c *gin.Context) {
	state, err := s.engine.GetPosition(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type scenarioRequest struct {
	Symbol    string  `json:"symbol" binding:"required"`
	TargetAvg float64 `json:"target_avg" binding:"required"`
	Price     float64 `json:"price" binding:"required"`
}

func (s *Server) handleScenario(c *gin.Context) {
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.Scenario(c.Request.Context(), req.Symbol, req.TargetAvg, req.Price)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func (s *Server) handleRecommendationHistory(c *gin.Context) {
	repo := s.engine.History()
	if repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history persistence disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := repo.ListRecommendations(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": records})
}

func (s *Server) handleClosedHistory(c *gin.Context) {
	repo := s.engine.History()
	if repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history persistence disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := repo.ListClosedPositions(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed_positions": records})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// computeTickSets derives the position-timeframe (15m) and trend-timeframe
// (4h) indicator sets from the supplied series. Missing or short series
// yield nil sets; the engine degrades accordingly.
func (s *Server) computeTickSets(series map[market.Timeframe][]market.Candle) (ind, higher *indicator.Set) {
	if candles, ok := series[market.Timeframe15m]; ok {
		if set, err := indicator.Compute(candles); err == nil {
			ind = set
		}
	}
	if candles, ok := series[market.Timeframe4h]; ok {
		if set, err := indicator.Compute(candles); err == nil {
			higher = set
		}
	}
	return ind, higher
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrPositionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, strategy.ErrStrategyNotFound), errors.Is(err, engine.ErrStrategyRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, position.ErrAlreadyOpen), errors.Is(err, position.ErrNotOpen),
		errors.Is(err, position.ErrInvalidEntry), errors.Is(err, position.ErrInfeasibleTarget):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
