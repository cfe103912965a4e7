package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/TradeFibSignals/web-fe-sub001/config"
	"github.com/TradeFibSignals/web-fe-sub001/internal/api"
	"github.com/TradeFibSignals/web-fe-sub001/internal/cache"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/events"
	"github.com/TradeFibSignals/web-fe-sub001/internal/lifecycle"
	"github.com/TradeFibSignals/web-fe-sub001/internal/logging"
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
	"github.com/TradeFibSignals/web-fe-sub001/internal/seasonality"
	sig "github.com/TradeFibSignals/web-fe-sub001/internal/signal"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load configuration", "error", err)
	}

	logging.SetDefault(logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		Component:   "app",
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
	}))

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	logging.Info("Starting fib signal engine",
		"pairs", cfg.SignalConfig.Pairs,
		"timeframes", cfg.SignalConfig.Timeframes)

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.RunMigrations(migrateCtx); err != nil {
		cancelMigrate()
		logging.Fatal("Failed to run migrations", "error", err)
	}
	cancelMigrate()

	repo := database.NewRepository(db)

	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logging.Warn("Cache unavailable, continuing without it", "error", err)
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}

	bus := events.NewEventBus()
	source := marketdata.NewClient(cfg.MarketDataConfig.Endpoints, cfg.MarketDataConfig.RequestTimeout)
	evaluator := seasonality.NewEvaluator()
	builder := sig.NewBuilder(cfg.SignalConfig.RiskReward, evaluator)
	generator := sig.NewGenerator(cfg.SignalConfig, source, repo, cacheService, builder, bus)

	manager := lifecycle.NewManager(repo, source, bus, cfg.SignalConfig.ExpiryPeriods, zlog)
	scheduler := lifecycle.NewScheduler(manager, cfg.SignalConfig.ReconcileInterval, zlog)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	scheduler.Start(rootCtx)

	server := api.NewServer(
		cfg.ServerConfig,
		cfg.SignalConfig,
		cfg.AuthConfig.APIToken,
		repo,
		cacheService,
		source,
		generator,
		manager,
		evaluator,
		bus,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("HTTP server failed", "error", err)
		}
	case s := <-quit:
		logging.Info("Shutdown signal received", "signal", s.String())
	}

	scheduler.Stop()
	cancelRoot()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown failed", "error", err)
	}

	logging.Info("Shutdown complete")
}
