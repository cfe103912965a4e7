package signal

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/TradeFibSignals/web-fe-sub001/internal/analysis"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/seasonality"
)

// Historical BTC seasonality makes October bullish, September bearish and
// May neutral; the builder tests pin dates to those months.
var (
	bullishMonth = time.Date(2023, time.October, 15, 12, 0, 0, 0, time.UTC)
	bearishMonth = time.Date(2023, time.September, 15, 12, 0, 0, 0, time.UTC)
	neutralMonth = time.Date(2023, time.May, 15, 12, 0, 0, 0, time.UTC)
)

func newTestBuilder() *Builder {
	return NewBuilder(3, seasonality.NewEvaluator())
}

func majorLevel(price float64, side analysis.LevelSide) analysis.LiquidityLevel {
	return analysis.LiquidityLevel{
		Price:   price,
		Time:    1_700_000_000_000,
		Side:    side,
		IsMajor: true,
	}
}

func extremumAt(price float64) *analysis.Extremum {
	return &analysis.Extremum{
		Index:     10,
		Price:     price,
		Time:      1_700_000_360_000,
		Confirmed: true,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuildLongPrices(t *testing.T) {
	b := newTestBuilder()

	signal, err := b.BuildLong("BTCUSDT", "1h", majorLevel(100, analysis.SellSide), extremumAt(120), bullishMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(signal.EntryPrice, 107.64) {
		t.Errorf("expected entry 107.64, got %v", signal.EntryPrice)
	}
	if !almostEqual(signal.StopLoss, 99.8) {
		t.Errorf("expected stop loss 99.8, got %v", signal.StopLoss)
	}
	if !almostEqual(signal.TakeProfit, 131.16) {
		t.Errorf("expected take profit 131.16, got %v", signal.TakeProfit)
	}

	risk := signal.EntryPrice - signal.StopLoss
	reward := signal.TakeProfit - signal.EntryPrice
	if math.Abs(reward/risk-3) > 1e-6 {
		t.Errorf("expected reward/risk 3, got %v", reward/risk)
	}

	if signal.Type != database.TypeLong {
		t.Errorf("expected type %s, got %s", database.TypeLong, signal.Type)
	}
	if signal.Status != database.StatusWaiting {
		t.Errorf("expected status %s, got %s", database.StatusWaiting, signal.Status)
	}
	if signal.ID == "" {
		t.Error("expected a generated id")
	}
	if signal.Seasonality != string(seasonality.Bullish) {
		t.Errorf("expected bullish seasonality, got %s", signal.Seasonality)
	}
}

func TestBuildLongOrdering(t *testing.T) {
	b := newTestBuilder()

	signal, err := b.BuildLong("BTCUSDT", "1h", majorLevel(100, analysis.SellSide), extremumAt(120), bullishMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !(signal.StopLoss < signal.EntryPrice && signal.EntryPrice < signal.TakeProfit) {
		t.Errorf("expected SL < entry < TP, got %v / %v / %v",
			signal.StopLoss, signal.EntryPrice, signal.TakeProfit)
	}
	if signal.StopLoss >= signal.MajorLevelPrice {
		t.Errorf("expected stop loss %v below level %v", signal.StopLoss, signal.MajorLevelPrice)
	}
}

func TestBuildShortPrices(t *testing.T) {
	b := newTestBuilder()

	signal, err := b.BuildShort("BTCUSDT", "1h", majorLevel(100, analysis.BuySide), extremumAt(80), bearishMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(signal.EntryPrice, 92.36) {
		t.Errorf("expected entry 92.36, got %v", signal.EntryPrice)
	}
	if !almostEqual(signal.StopLoss, 100.2) {
		t.Errorf("expected stop loss 100.2, got %v", signal.StopLoss)
	}
	if !almostEqual(signal.TakeProfit, 68.84) {
		t.Errorf("expected take profit 68.84, got %v", signal.TakeProfit)
	}

	if !(signal.TakeProfit < signal.EntryPrice && signal.EntryPrice < signal.StopLoss) {
		t.Errorf("expected TP < entry < SL, got %v / %v / %v",
			signal.TakeProfit, signal.EntryPrice, signal.StopLoss)
	}
	if signal.Type != database.TypeShort {
		t.Errorf("expected type %s, got %s", database.TypeShort, signal.Type)
	}
}

func TestBuildFibLevels(t *testing.T) {
	b := newTestBuilder()

	signal, err := b.BuildLong("BTCUSDT", "1h", majorLevel(100, analysis.SellSide), extremumAt(120), bullishMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prices := map[float64]float64{}
	for _, fib := range signal.FibLevels {
		prices[fib.Level] = fib.Price
	}

	for _, required := range []float64{0, 0.618, 1.0} {
		if _, ok := prices[required]; !ok {
			t.Errorf("missing fib ratio %v", required)
		}
	}
	if !almostEqual(prices[0], 120) {
		t.Errorf("expected ratio 0 at the peak, got %v", prices[0])
	}
	if !almostEqual(prices[1.0], 100) {
		t.Errorf("expected ratio 1 at the level, got %v", prices[1.0])
	}
	if !almostEqual(prices[0.618], signal.EntryPrice) {
		t.Errorf("expected ratio 0.618 at the entry, got %v", prices[0.618])
	}
}

func TestBuildSeasonalityVeto(t *testing.T) {
	b := newTestBuilder()

	if _, err := b.BuildLong("BTCUSDT", "1h", majorLevel(100, analysis.SellSide), extremumAt(120), bearishMonth); !errors.Is(err, ErrSeasonalityVeto) {
		t.Errorf("expected seasonality veto for a long in a bearish month, got %v", err)
	}
	if _, err := b.BuildLong("BTCUSDT", "1h", majorLevel(100, analysis.SellSide), extremumAt(120), neutralMonth); !errors.Is(err, ErrSeasonalityVeto) {
		t.Errorf("expected seasonality veto for a long in a neutral month, got %v", err)
	}
	if _, err := b.BuildShort("BTCUSDT", "1h", majorLevel(100, analysis.BuySide), extremumAt(80), bullishMonth); !errors.Is(err, ErrSeasonalityVeto) {
		t.Errorf("expected seasonality veto for a short in a bullish month, got %v", err)
	}
	if _, err := b.BuildShort("BTCUSDT", "1h", majorLevel(100, analysis.BuySide), extremumAt(80), neutralMonth); !errors.Is(err, ErrSeasonalityVeto) {
		t.Errorf("expected seasonality veto for a short in a neutral month, got %v", err)
	}
}

func TestBuildRejectsMinorLevel(t *testing.T) {
	b := newTestBuilder()

	level := majorLevel(100, analysis.SellSide)
	level.IsMajor = false

	if _, err := b.BuildLong("BTCUSDT", "1h", level, extremumAt(120), bullishMonth); !errors.Is(err, ErrNotMajorLevel) {
		t.Errorf("expected minor level rejection, got %v", err)
	}
}

func TestBuildRejectsBadGeometry(t *testing.T) {
	b := newTestBuilder()

	if _, err := b.BuildLong("BTCUSDT", "1h", majorLevel(100, analysis.SellSide), extremumAt(90), bullishMonth); !errors.Is(err, ErrBadGeometry) {
		t.Errorf("expected geometry rejection for a peak below the level, got %v", err)
	}
	if _, err := b.BuildShort("BTCUSDT", "1h", majorLevel(100, analysis.BuySide), extremumAt(110), bearishMonth); !errors.Is(err, ErrBadGeometry) {
		t.Errorf("expected geometry rejection for a trough above the level, got %v", err)
	}
}
