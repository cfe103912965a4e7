// Package api exposes the HTTP and WebSocket surface of the signal engine.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/TradeFibSignals/web-fe-sub001/config"
	"github.com/TradeFibSignals/web-fe-sub001/internal/cache"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/events"
	"github.com/TradeFibSignals/web-fe-sub001/internal/lifecycle"
	"github.com/TradeFibSignals/web-fe-sub001/internal/logging"
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
	"github.com/TradeFibSignals/web-fe-sub001/internal/seasonality"
	"github.com/TradeFibSignals/web-fe-sub001/internal/signal"
)

// Server represents the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.ServerConfig
	signalCfg  config.SignalConfig
	apiToken   string

	repo        *database.Repository
	cache       *cache.CacheService
	source      *marketdata.Client
	generator   *signal.Generator
	manager     *lifecycle.Manager
	seasonality *seasonality.Evaluator
	wsHub       *WSHub
	logger      *logging.Logger
	startedAt   time.Time
}

// NewServer creates the API server and registers all routes. cacheService
// may be nil when Redis is disabled.
func NewServer(
	cfg config.ServerConfig,
	signalCfg config.SignalConfig,
	apiToken string,
	repo *database.Repository,
	cacheService *cache.CacheService,
	source *marketdata.Client,
	generator *signal.Generator,
	manager *lifecycle.Manager,
	evaluator *seasonality.Evaluator,
	bus *events.EventBus,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		cfg:         cfg,
		signalCfg:   signalCfg,
		apiToken:    apiToken,
		repo:        repo,
		cache:       cacheService,
		source:      source,
		generator:   generator,
		manager:     manager,
		seasonality: evaluator,
		wsHub:       NewWSHub(bus),
		logger:      logging.WithComponent("api"),
		startedAt:   time.Now(),
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.wsHub.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/signals", s.handleListSignals)
		api.GET("/signals/active", s.handleActiveSignals)
		api.GET("/signals/completed", s.handleCompletedSignals)
		api.GET("/signals/:id", s.handleGetSignal)

		api.GET("/candles", s.handleGetCandles)
		api.GET("/seasonality", s.handleSeasonality)
		api.GET("/seasonality/:month", s.handleSeasonalityMonth)
	}

	// Mutating endpoints require the static API token.
	protected := s.router.Group("/api")
	protected.Use(s.tokenAuthMiddleware())
	{
		protected.POST("/signals/generate", s.handleGenerate)
		protected.POST("/signals/reconcile", s.handleReconcile)
		protected.POST("/cache/warm", s.handleCacheWarm)
		protected.POST("/cache/invalidate", s.handleCacheInvalidate)
	}
}

// tokenAuthMiddleware checks the static bearer token on write endpoints.
// With no token configured, write endpoints are disabled outright.
func (s *Server) tokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiToken == "" {
			errorResponse(c, http.StatusServiceUnavailable, "write endpoints disabled: no API token configured")
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
			errorResponse(c, http.StatusUnauthorized, "invalid or missing API token")
			c.Abort()
			return
		}

		c.Next()
	}
}

// Start runs the HTTP server until the listener fails or Shutdown is
// called. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	s.logger.Info("HTTP server listening", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
