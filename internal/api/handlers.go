package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TradeFibSignals/web-fe-sub001/internal/cache"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 500
	defaultCandleLimit = 200
	maxCandleLimit     = 1000
)

var validStatuses = map[string]bool{
	database.StatusWaiting:   true,
	database.StatusActive:    true,
	database.StatusCompleted: true,
	database.StatusExpired:   true,
}

// handleHealth reports process and dependency health. The endpoint stays
// 200 when Redis is degraded since the engine works without it.
func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "healthy"
	status := http.StatusOK
	if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
		dbStatus = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "healthy"
		if !s.cache.IsHealthy() {
			cacheStatus = "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":     dbStatus,
		"database":   dbStatus,
		"cache":      cacheStatus,
		"ws_clients": s.wsHub.ClientCount(),
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleListSignals(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validStatuses[status] {
		errorResponse(c, http.StatusBadRequest, "invalid status: "+status)
		return
	}

	limit := parseLimit(c.Query("limit"), defaultSignalLimit, maxSignalLimit)

	signals, err := s.repo.QuerySignals(c.Request.Context(), status, c.Query("pair"), c.Query("timeframe"), limit)
	if err != nil {
		s.logger.Error("Failed to query signals", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to query signals")
		return
	}
	if signals == nil {
		signals = []*database.Signal{}
	}

	successResponse(c, signals)
}

func (s *Server) handleActiveSignals(c *gin.Context) {
	signals, err := s.repo.QueryActiveSignals(c.Request.Context(), c.Query("pair"), c.Query("timeframe"))
	if err != nil {
		s.logger.Error("Failed to query active signals", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to query signals")
		return
	}
	if signals == nil {
		signals = []*database.Signal{}
	}

	successResponse(c, signals)
}

func (s *Server) handleCompletedSignals(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultSignalLimit, maxSignalLimit)

	signals, err := s.repo.QuerySignalsByStatus(c.Request.Context(), database.StatusCompleted, limit)
	if err != nil {
		s.logger.Error("Failed to query completed signals", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to query signals")
		return
	}
	if signals == nil {
		signals = []*database.Signal{}
	}

	successResponse(c, signals)
}

func (s *Server) handleGetSignal(c *gin.Context) {
	signal, err := s.repo.GetSignalByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrSignalNotFound) {
			errorResponse(c, http.StatusNotFound, "signal not found")
			return
		}
		s.logger.Error("Failed to get signal", "id", c.Param("id"), "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to get signal")
		return
	}

	successResponse(c, signal)
}

// handleGetCandles serves candles for charting. A start/end pair serves
// the persisted range from the database; otherwise the latest window is
// served from cache, falling through to the upstream API.
func (s *Server) handleGetCandles(c *gin.Context) {
	pair := c.Query("pair")
	timeframe := c.Query("timeframe")
	if pair == "" || timeframe == "" {
		errorResponse(c, http.StatusBadRequest, "pair and timeframe are required")
		return
	}
	if !marketdata.ValidTimeframe(timeframe) {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe: "+timeframe)
		return
	}

	ctx := c.Request.Context()

	if c.Query("start") != "" || c.Query("end") != "" {
		start, err1 := strconv.ParseInt(c.Query("start"), 10, 64)
		end, err2 := strconv.ParseInt(c.Query("end"), 10, 64)
		if err1 != nil || err2 != nil || end < start {
			errorResponse(c, http.StatusBadRequest, "start and end must be epoch milliseconds with end >= start")
			return
		}
		candles, err := s.repo.QueryCandleRange(ctx, pair, timeframe, start, end)
		if err != nil {
			s.logger.Error("Failed to query candle range", "pair", pair, "error", err)
			errorResponse(c, http.StatusInternalServerError, "failed to query candles")
			return
		}
		successResponse(c, candles)
		return
	}

	limit := parseLimit(c.Query("limit"), defaultCandleLimit, maxCandleLimit)

	key := cache.MarketKey(pair, timeframe, cache.KindCandles)
	if s.cache != nil {
		var cached []marketdata.Candle
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			if len(cached) > limit {
				cached = cached[len(cached)-limit:]
			}
			successResponse(c, cached)
			return
		} else if !cache.IsMiss(err) {
			s.logger.Debug("Candle cache read skipped", "pair", pair, "error", err)
		}
	}

	candles, err := s.source.GetCandles(ctx, pair, timeframe, limit, 0)
	if err != nil {
		s.logger.Error("Upstream candle fetch failed", "pair", pair, "error", err)
		errorResponse(c, http.StatusBadGateway, "upstream market data unavailable")
		return
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, candles, cache.CandleTTL(timeframe)); err != nil {
			s.logger.Debug("Candle cache write skipped", "pair", pair, "error", err)
		}
	}

	successResponse(c, candles)
}

func (s *Server) handleSeasonality(c *gin.Context) {
	stats, err := s.seasonality.AllStats()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to compute seasonality")
		return
	}
	successResponse(c, stats)
}

func (s *Server) handleSeasonalityMonth(c *gin.Context) {
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 0 || month > 11 {
		errorResponse(c, http.StatusBadRequest, "month must be 0-11")
		return
	}

	ctx := c.Request.Context()
	key := cache.SeasonalityKey(month)

	if s.cache != nil {
		var cached gin.H
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			successResponse(c, cached)
			return
		}
	}

	stat, err := s.seasonality.StatForMonth(month)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to compute seasonality")
		return
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, stat, 24*time.Hour); err != nil {
			s.logger.Debug("Seasonality cache write skipped", "month", month, "error", err)
		}
	}

	successResponse(c, stat)
}

type generateRequest struct {
	Pair      string `json:"pair"`
	Timeframe string `json:"timeframe"`
}

// handleGenerate triggers a generation run. With a pair and timeframe in
// the body only that combination runs; otherwise the full configured grid
// runs under the wall-clock budget.
func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if req.Pair != "" || req.Timeframe != "" {
		if req.Pair == "" || req.Timeframe == "" {
			errorResponse(c, http.StatusBadRequest, "pair and timeframe must both be set")
			return
		}
		if !marketdata.ValidTimeframe(req.Timeframe) {
			errorResponse(c, http.StatusBadRequest, "unknown timeframe: "+req.Timeframe)
			return
		}
		successResponse(c, s.generator.GenerateOne(c.Request.Context(), req.Pair, req.Timeframe))
		return
	}

	successResponse(c, s.generator.GenerateAll(c.Request.Context()))
}

func (s *Server) handleReconcile(c *gin.Context) {
	stats, err := s.manager.Reconcile(c.Request.Context())
	if err != nil {
		s.logger.Error("Reconciliation failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	successResponse(c, stats)
}

// handleCacheWarm prefetches candles for every configured pair and
// timeframe into the cache. Per-pair failures are reported, not fatal.
func (s *Server) handleCacheWarm(c *gin.Context) {
	if s.cache == nil {
		errorResponse(c, http.StatusServiceUnavailable, "cache is disabled")
		return
	}

	ctx := c.Request.Context()
	warmed := 0
	var failed []string

	for _, pair := range s.signalCfg.Pairs {
		for _, tf := range s.signalCfg.Timeframes {
			candles, err := s.source.GetCandles(ctx, pair, tf, s.signalCfg.CandleLimit, 0)
			if err != nil {
				failed = append(failed, pair+"/"+tf)
				continue
			}
			key := cache.MarketKey(pair, tf, cache.KindCandles)
			if err := s.cache.SetJSON(ctx, key, candles, cache.CandleTTL(tf)); err != nil {
				failed = append(failed, pair+"/"+tf)
				continue
			}
			warmed++
		}
	}

	successResponse(c, gin.H{
		"warmed": warmed,
		"failed": failed,
	})
}

type invalidateRequest struct {
	Pair      string `json:"pair"`
	Timeframe string `json:"timeframe"`
	Month     *int   `json:"month"`
}

func (s *Server) handleCacheInvalidate(c *gin.Context) {
	if s.cache == nil {
		errorResponse(c, http.StatusServiceUnavailable, "cache is disabled")
		return
	}

	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := c.Request.Context()

	switch {
	case req.Month != nil:
		if *req.Month < 0 || *req.Month > 11 {
			errorResponse(c, http.StatusBadRequest, "month must be 0-11")
			return
		}
		if err := s.cache.InvalidateSeasonality(ctx, *req.Month); err != nil {
			errorResponse(c, http.StatusInternalServerError, "invalidation failed")
			return
		}
	case req.Pair != "" && req.Timeframe != "":
		if err := s.cache.InvalidateMarket(ctx, req.Pair, req.Timeframe); err != nil {
			errorResponse(c, http.StatusInternalServerError, "invalidation failed")
			return
		}
	default:
		errorResponse(c, http.StatusBadRequest, "either pair+timeframe or month is required")
		return
	}

	successResponse(c, gin.H{"invalidated": true})
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
