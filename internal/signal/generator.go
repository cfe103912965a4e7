package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TradeFibSignals/web-fe-sub001/config"
	"github.com/TradeFibSignals/web-fe-sub001/internal/analysis"
	"github.com/TradeFibSignals/web-fe-sub001/internal/cache"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/events"
	"github.com/TradeFibSignals/web-fe-sub001/internal/logging"
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

// CandleSource fetches candle series for analysis.
type CandleSource interface {
	GetCandles(ctx context.Context, pair, timeframe string, limit int, endTime int64) ([]marketdata.Candle, error)
}

// Repository is the persistence surface the generator needs.
type Repository interface {
	HasOpenSignal(ctx context.Context, pair, timeframe string) (bool, error)
	InsertSignal(ctx context.Context, signal *database.Signal) error
	UpsertCandles(ctx context.Context, pair, timeframe string, candles []marketdata.Candle) error
}

// PairResult describes the outcome for one (pair, timeframe) job.
type PairResult struct {
	Pair      string           `json:"pair"`
	Timeframe string           `json:"timeframe"`
	Signal    *database.Signal `json:"signal,omitempty"`
	Skipped   string           `json:"skipped,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// BatchResult is the aggregate outcome of a generation run. When the
// wall-clock budget runs out the run returns whatever completed so far
// with Truncated set.
type BatchResult struct {
	Generated int          `json:"generated"`
	Results   []PairResult `json:"results"`
	ElapsedMS int64        `json:"elapsed_ms"`
	Truncated bool         `json:"truncated"`
}

// Generator runs signal detection across configured pairs and timeframes.
type Generator struct {
	cfg      config.SignalConfig
	source   CandleSource
	repo     Repository
	cache    *cache.CacheService
	detector *analysis.LevelDetector
	builder  *Builder
	bus      *events.EventBus
	logger   *logging.Logger
}

// NewGenerator creates a generator. cache may be nil.
func NewGenerator(cfg config.SignalConfig, source CandleSource, repo Repository, cacheService *cache.CacheService, builder *Builder, bus *events.EventBus) *Generator {
	return &Generator{
		cfg:      cfg,
		source:   source,
		repo:     repo,
		cache:    cacheService,
		detector: analysis.NewLevelDetector(cfg.SwingStrength, cfg.MajorThreshold),
		builder:  builder,
		bus:      bus,
		logger:   logging.Default().WithComponent("generator"),
	}
}

type job struct {
	pair      string
	timeframe string
}

// GenerateAll runs detection for every configured pair and timeframe using
// a bounded worker pool. The run is capped by the generation budget; jobs
// that did not start before the budget expired are dropped and the partial
// result is returned with Truncated set.
func (g *Generator) GenerateAll(ctx context.Context) *BatchResult {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, g.cfg.GenerationBudget)
	defer cancel()

	jobs := make(chan job)
	resultCh := make(chan PairResult)

	var wg sync.WaitGroup
	for i := 0; i < g.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				resultCh <- g.runJob(runCtx, j.pair, j.timeframe)
			}
		}()
	}

	total := len(g.cfg.Pairs) * len(g.cfg.Timeframes)
	go func() {
		defer close(jobs)
		for _, pair := range g.cfg.Pairs {
			for _, tf := range g.cfg.Timeframes {
				select {
				case jobs <- job{pair: pair, timeframe: tf}:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := &BatchResult{}
	for r := range resultCh {
		result.Results = append(result.Results, r)
		if r.Signal != nil {
			result.Generated++
		}
	}

	elapsed := time.Since(start)
	result.ElapsedMS = elapsed.Milliseconds()
	result.Truncated = len(result.Results) < total

	g.logger.Info("Generation run finished",
		"generated", result.Generated,
		"jobs", len(result.Results),
		"truncated", result.Truncated,
		"elapsed", elapsed.String())

	return result
}

// GenerateOne runs detection for a single pair and timeframe.
func (g *Generator) GenerateOne(ctx context.Context, pair, timeframe string) PairResult {
	return g.runJob(ctx, pair, timeframe)
}

func (g *Generator) runJob(ctx context.Context, pair, timeframe string) PairResult {
	result := PairResult{Pair: pair, Timeframe: timeframe}

	open, err := g.repo.HasOpenSignal(ctx, pair, timeframe)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if open {
		result.Skipped = "open signal exists"
		return result
	}

	candles, err := g.fetchCandles(ctx, pair, timeframe)
	if err != nil {
		g.logger.Error("Candle fetch failed", "pair", pair, "timeframe", timeframe, "error", err)
		result.Error = err.Error()
		return result
	}

	levels := g.detector.DetectLevels(candles)

	signal := g.detect(candles, levels)
	if signal == nil {
		result.Skipped = "no qualifying setup"
		return result
	}
	signal.Pair = pair
	signal.Timeframe = timeframe

	if err := g.repo.InsertSignal(ctx, signal); err != nil {
		result.Error = err.Error()
		return result
	}

	g.logger.Info("Signal generated",
		"id", signal.ID, "pair", pair, "timeframe", timeframe,
		"type", signal.Type, "entry", signal.EntryPrice)
	g.bus.PublishSignalGenerated(signal.ID, pair, timeframe, signal.Type, signal.EntryPrice)

	result.Signal = signal
	return result
}

// detect tries the long setup off the latest major sell-side level, then
// the short setup off the latest major buy-side level. Veto and geometry
// errors mean no setup; the builder fills everything except pair/timeframe.
func (g *Generator) detect(candles []marketdata.Candle, levels analysis.LevelSet) *database.Signal {
	now := time.Now()

	if signal := g.tryDirection(candles, analysis.MajorLevels(levels.SellSide), analysis.ExtremumHigh, now); signal != nil {
		return signal
	}
	return g.tryDirection(candles, analysis.MajorLevels(levels.BuySide), analysis.ExtremumLow, now)
}

func (g *Generator) tryDirection(candles []marketdata.Candle, major []analysis.LiquidityLevel, direction analysis.ExtremumDirection, now time.Time) *database.Signal {
	if len(major) == 0 {
		return nil
	}
	level := major[len(major)-1]

	after := candlesAfter(candles, level.Time)
	extremum := analysis.FindConfirmedExtremum(after, direction)
	if extremum == nil {
		return nil
	}

	var (
		signal *database.Signal
		err    error
	)
	if direction == analysis.ExtremumHigh {
		signal, err = g.builder.BuildLong("", "", level, extremum, now)
	} else {
		signal, err = g.builder.BuildShort("", "", level, extremum, now)
	}
	if err != nil {
		if !errors.Is(err, ErrSeasonalityVeto) && !errors.Is(err, ErrBadGeometry) && !errors.Is(err, ErrNotMajorLevel) {
			g.logger.Error("Signal build failed", "error", err)
		}
		return nil
	}
	return signal
}

// fetchCandles pulls the detection window from upstream, persists it for
// dashboard range queries and refreshes the cache. Persistence and cache
// failures are logged but never block detection.
func (g *Generator) fetchCandles(ctx context.Context, pair, timeframe string) ([]marketdata.Candle, error) {
	candles, err := g.source.GetCandles(ctx, pair, timeframe, g.cfg.CandleLimit, 0)
	if err != nil {
		return nil, err
	}

	if err := g.repo.UpsertCandles(ctx, pair, timeframe, candles); err != nil {
		g.logger.Warn("Candle persistence failed", "pair", pair, "timeframe", timeframe, "error", err)
	}

	if g.cache != nil {
		key := cache.MarketKey(pair, timeframe, cache.KindCandles)
		if err := g.cache.SetJSON(ctx, key, candles, cache.CandleTTL(timeframe)); err != nil {
			g.logger.Debug("Candle cache refresh skipped", "pair", pair, "error", err)
		}
	}

	return candles, nil
}

func candlesAfter(candles []marketdata.Candle, openTime int64) []marketdata.Candle {
	for i, c := range candles {
		if c.OpenTime > openTime {
			return candles[i:]
		}
	}
	return nil
}
