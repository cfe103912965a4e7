package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TradeFibSignals/web-fe-sub001/config"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/events"
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
	"github.com/TradeFibSignals/web-fe-sub001/internal/seasonality"
)

type fakeRepo struct {
	open     bool
	openErr  error
	inserted []*database.Signal
	candles  int
}

func (r *fakeRepo) HasOpenSignal(ctx context.Context, pair, timeframe string) (bool, error) {
	return r.open, r.openErr
}

func (r *fakeRepo) InsertSignal(ctx context.Context, signal *database.Signal) error {
	r.inserted = append(r.inserted, signal)
	return nil
}

func (r *fakeRepo) UpsertCandles(ctx context.Context, pair, timeframe string, candles []marketdata.Candle) error {
	r.candles += len(candles)
	return nil
}

type fakeSource struct {
	candles []marketdata.Candle
	err     error
	delay   time.Duration
	calls   int
}

func (s *fakeSource) GetCandles(ctx context.Context, pair, timeframe string, limit int, endTime int64) ([]marketdata.Candle, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.candles, s.err
}

func flatCandles(n int) []marketdata.Candle {
	candles := make([]marketdata.Candle, n)
	for i := range candles {
		candles[i] = marketdata.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     100,
			High:     100.5,
			Low:      99.5,
			Close:    100,
			Volume:   1,
		}
	}
	return candles
}

func testConfig() config.SignalConfig {
	return config.SignalConfig{
		Pairs:            []string{"BTCUSDT"},
		Timeframes:       []string{"1h"},
		SwingStrength:    5,
		MajorThreshold:   1.5,
		RiskReward:       3,
		CandleLimit:      100,
		GenerationBudget: 5 * time.Second,
		WorkerCount:      2,
	}
}

func newTestGenerator(repo Repository, source CandleSource) *Generator {
	builder := NewBuilder(3, seasonality.NewEvaluator())
	return NewGenerator(testConfig(), source, repo, nil, builder, events.NewEventBus())
}

func TestGenerateOneSkipsWhenSignalOpen(t *testing.T) {
	repo := &fakeRepo{open: true}
	source := &fakeSource{candles: flatCandles(50)}

	g := newTestGenerator(repo, source)
	result := g.GenerateOne(context.Background(), "BTCUSDT", "1h")

	if result.Skipped == "" {
		t.Error("expected the job to be skipped")
	}
	if source.calls != 0 {
		t.Errorf("expected no upstream fetch, got %d calls", source.calls)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("expected no inserts, got %d", len(repo.inserted))
	}
}

func TestGenerateOneNoSetupOnFlatMarket(t *testing.T) {
	repo := &fakeRepo{}
	source := &fakeSource{candles: flatCandles(50)}

	g := newTestGenerator(repo, source)
	result := g.GenerateOne(context.Background(), "BTCUSDT", "1h")

	if result.Signal != nil {
		t.Errorf("expected no signal on a flat market, got %+v", result.Signal)
	}
	if result.Skipped == "" {
		t.Error("expected a skip reason")
	}
	if repo.candles == 0 {
		t.Error("expected fetched candles to be persisted")
	}
}

func TestGenerateOneSurfacesFetchError(t *testing.T) {
	repo := &fakeRepo{}
	source := &fakeSource{err: errors.New("upstream down")}

	g := newTestGenerator(repo, source)
	result := g.GenerateOne(context.Background(), "BTCUSDT", "1h")

	if result.Error == "" {
		t.Error("expected the fetch error to be reported")
	}
	if len(repo.inserted) != 0 {
		t.Errorf("expected no inserts, got %d", len(repo.inserted))
	}
}

func TestGenerateAllCoversGrid(t *testing.T) {
	repo := &fakeRepo{}
	source := &fakeSource{candles: flatCandles(50)}

	g := newTestGenerator(repo, source)
	result := g.GenerateAll(context.Background())

	if len(result.Results) != 1 {
		t.Fatalf("expected 1 job result, got %d", len(result.Results))
	}
	if result.Truncated {
		t.Error("expected the run to finish within budget")
	}
	if result.Generated != 0 {
		t.Errorf("expected no signals on a flat market, got %d", result.Generated)
	}
}

func TestGenerateAllTruncatesOnExpiredBudget(t *testing.T) {
	repo := &fakeRepo{}
	source := &fakeSource{candles: flatCandles(50), delay: 200 * time.Millisecond}

	cfg := testConfig()
	cfg.Timeframes = []string{"1h", "4h", "1d"}
	cfg.WorkerCount = 1
	cfg.GenerationBudget = 50 * time.Millisecond

	builder := NewBuilder(3, seasonality.NewEvaluator())
	g := NewGenerator(cfg, source, repo, nil, builder, events.NewEventBus())

	result := g.GenerateAll(context.Background())
	if !result.Truncated {
		t.Error("expected the run to report truncation")
	}
	if len(result.Results) >= 3 {
		t.Errorf("expected fewer than 3 completed jobs, got %d", len(result.Results))
	}
}

func TestCandlesAfter(t *testing.T) {
	candles := flatCandles(5)

	after := candlesAfter(candles, candles[1].OpenTime)
	if len(after) != 3 {
		t.Fatalf("expected 3 candles after index 1, got %d", len(after))
	}
	if after[0].OpenTime != candles[2].OpenTime {
		t.Errorf("expected slice to start strictly after the level time")
	}

	if got := candlesAfter(candles, candles[4].OpenTime); got != nil {
		t.Errorf("expected nil when the level is the last candle, got %d", len(got))
	}
}
