// Package cache provides Redis-based caching for candle series and
// seasonality stats, with graceful degradation when Redis is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TradeFibSignals/web-fe-sub001/config"
	"github.com/TradeFibSignals/web-fe-sub001/internal/logging"
)

// Kind identifies what a cache entry holds for a (pair, timeframe) key.
type Kind string

const (
	KindCandles     Kind = "candles"
	KindSeasonality Kind = "seasonality"
)

// Key prefixes
const (
	prefixMarket      = "market:%s:%s:%s" // pair, timeframe, kind
	prefixSeasonality = "seasonality:month:%d"
)

// CacheService provides Redis-based caching with a small circuit breaker.
// When Redis is unhealthy, operations return errors that callers handle by
// falling through to the underlying source.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCacheService creates a new CacheService and verifies connectivity.
// A failed initial connection returns the service in degraded mode rather
// than an error, so the application can start without Redis.
func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:        client,
		config:        cfg,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logging.Warn("Initial Redis connection failed, starting degraded", "error", err)
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	logging.Info("Redis connected", "address", cfg.Address)

	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			logging.Warn("Redis marked unhealthy", "failures", cs.failureCount)
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		logging.Info("Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

func (cs *CacheService) checkHealth() {
	cs.mu.RLock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	cs.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// GetJSON retrieves and unmarshals a cached JSON value. redis.Nil is
// returned untouched on a miss.
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return err
		}
		cs.recordFailure()
		return fmt.Errorf("redis get failed: %w", err)
	}
	cs.recordSuccess()

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a JSON value with TTL.
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}
	cs.recordSuccess()
	return nil
}

// Delete removes a key from cache.
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := cs.client.Del(ctx, key).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}
	cs.recordSuccess()
	return nil
}

// InvalidateMarket removes all cached entries for a pair/timeframe. This is
// the explicit invalidation entry point for the market cache.
func (cs *CacheService) InvalidateMarket(ctx context.Context, pair, timeframe string) error {
	for _, kind := range []Kind{KindCandles, KindSeasonality} {
		if err := cs.Delete(ctx, MarketKey(pair, timeframe, kind)); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateSeasonality removes the cached stat for one month (0-11).
func (cs *CacheService) InvalidateSeasonality(ctx context.Context, month int) error {
	return cs.Delete(ctx, SeasonalityKey(month))
}

// IsMiss reports whether the error from GetJSON was a plain cache miss.
func IsMiss(err error) bool {
	return err == redis.Nil
}

// Close closes the Redis connection.
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Ping checks Redis connectivity.
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// CandleTTL returns the cache TTL for a timeframe: roughly half a period,
// capped so dashboards never serve stale intraday data for long.
func CandleTTL(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return 30 * time.Second
	case "5m":
		return 2 * time.Minute
	case "15m":
		return 5 * time.Minute
	case "1h":
		return 30 * time.Minute
	case "4h":
		return 2 * time.Hour
	case "1d":
		return 12 * time.Hour
	default:
		return time.Minute
	}
}

// MarketKey generates a cache key for a (pair, timeframe, kind) entry.
func MarketKey(pair, timeframe string, kind Kind) string {
	return fmt.Sprintf(prefixMarket, pair, timeframe, kind)
}

// SeasonalityKey generates a cache key for a month's seasonality stat.
func SeasonalityKey(month int) string {
	return fmt.Sprintf(prefixSeasonality, month)
}
