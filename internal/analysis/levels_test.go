package analysis

import (
	"fmt"
	"testing"

	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

func makeCandles(highs, lows []float64) []marketdata.Candle {
	candles := make([]marketdata.Candle, len(highs))
	for i := range highs {
		candles[i] = marketdata.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     (highs[i] + lows[i]) / 2,
			High:     highs[i],
			Low:      lows[i],
			Close:    (highs[i] + lows[i]) / 2,
			Volume:   1,
		}
	}
	return candles
}

func TestDetectLevelsShortSeries(t *testing.T) {
	detector := NewLevelDetector(5, 1.5)

	candles := makeCandles(
		[]float64{10, 11, 12, 11, 10},
		[]float64{9, 10, 11, 10, 9},
	)

	levels := detector.DetectLevels(candles)
	if len(levels.BuySide) != 0 || len(levels.SellSide) != 0 {
		t.Errorf("expected no levels for %d candles, got %d buy / %d sell",
			len(candles), len(levels.BuySide), len(levels.SellSide))
	}
}

func TestDetectLevelsFindsSwingHigh(t *testing.T) {
	detector := NewLevelDetector(2, 1.5)

	candles := makeCandles(
		[]float64{10, 11, 15, 11, 10},
		[]float64{9, 10, 14, 10, 9},
	)

	levels := detector.DetectLevels(candles)
	if len(levels.SellSide) != 1 {
		t.Fatalf("expected 1 sell-side level, got %d", len(levels.SellSide))
	}
	level := levels.SellSide[0]
	if level.Price != 15 {
		t.Errorf("expected level price 15, got %v", level.Price)
	}
	if level.Time != candles[2].OpenTime {
		t.Errorf("expected level time %d, got %d", candles[2].OpenTime, level.Time)
	}
	if level.Side != SellSide {
		t.Errorf("expected side %s, got %s", SellSide, level.Side)
	}
}

func TestDetectLevelsEqualHighIsNotSwing(t *testing.T) {
	detector := NewLevelDetector(1, 1.5)

	// Two equal highs: neither strictly exceeds the other.
	candles := makeCandles(
		[]float64{10, 15, 15, 10},
		[]float64{5, 6, 6, 5},
	)

	levels := detector.DetectLevels(candles)
	if len(levels.SellSide) != 0 {
		t.Errorf("expected no sell-side levels for equal highs, got %d", len(levels.SellSide))
	}
}

func TestDetectLevelsMajorClassification(t *testing.T) {
	detector := NewLevelDetector(1, 1.5)

	// Swing high at 20, swing low at 8, then a minor swing high at 13 with
	// no opposing swing after it.
	candles := makeCandles(
		[]float64{10, 20, 12, 13, 11},
		[]float64{9, 19, 8, 9.5, 9.6},
	)

	levels := detector.DetectLevels(candles)
	if len(levels.SellSide) != 2 {
		t.Fatalf("expected 2 sell-side levels, got %d", len(levels.SellSide))
	}
	if len(levels.BuySide) != 1 {
		t.Fatalf("expected 1 buy-side level, got %d", len(levels.BuySide))
	}

	// 20 -> 8 is a 60% excursion, well past the threshold.
	if !levels.SellSide[0].IsMajor {
		t.Errorf("expected level at %v to be major", levels.SellSide[0].Price)
	}
	// 8 -> 13 is 62.5%, also major.
	if !levels.BuySide[0].IsMajor {
		t.Errorf("expected level at %v to be major", levels.BuySide[0].Price)
	}
	// Last swing high has no opposing swing after it.
	if levels.SellSide[1].IsMajor {
		t.Errorf("expected trailing level at %v to be minor", levels.SellSide[1].Price)
	}
}

func TestDetectLevelsPricesComeFromCandles(t *testing.T) {
	detector := NewLevelDetector(2, 1.5)

	candles := makeCandles(
		[]float64{10, 12, 18, 13, 11, 14, 19, 15, 12, 10},
		[]float64{8, 9, 15, 7, 6, 9, 16, 11, 8, 7},
	)

	levels := detector.DetectLevels(candles)

	highs := map[float64]bool{}
	lows := map[float64]bool{}
	for _, c := range candles {
		highs[c.High] = true
		lows[c.Low] = true
	}

	seen := map[string]bool{}
	check := func(list []LiquidityLevel, valid map[float64]bool) {
		for _, level := range list {
			if !valid[level.Price] {
				t.Errorf("level price %v does not match any candle extreme", level.Price)
			}
			key := fmt.Sprintf("%s:%d", level.Side, level.Time)
			if seen[key] {
				t.Errorf("duplicate level at time %d side %s", level.Time, level.Side)
			}
			seen[key] = true
		}
	}
	check(levels.SellSide, highs)
	check(levels.BuySide, lows)
}

func TestMajorLevelsFilter(t *testing.T) {
	levels := []LiquidityLevel{
		{Price: 1, IsMajor: true},
		{Price: 2, IsMajor: false},
		{Price: 3, IsMajor: true},
	}

	major := MajorLevels(levels)
	if len(major) != 2 {
		t.Fatalf("expected 2 major levels, got %d", len(major))
	}
	if major[0].Price != 1 || major[1].Price != 3 {
		t.Errorf("unexpected major levels: %+v", major)
	}
}
