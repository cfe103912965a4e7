package analysis

import (
	"testing"
)

func TestFindConfirmedExtremumEmpty(t *testing.T) {
	if ext := FindConfirmedExtremum(nil, ExtremumHigh); ext != nil {
		t.Errorf("expected nil for empty series, got %+v", ext)
	}
}

func TestFindConfirmedPeak(t *testing.T) {
	candles := makeCandles(
		[]float64{10, 11, 15, 14, 13, 12},
		[]float64{9, 10, 14, 13, 12, 11},
	)

	ext := FindConfirmedExtremum(candles, ExtremumHigh)
	if ext == nil {
		t.Fatal("expected an extremum")
	}
	if !ext.Confirmed {
		t.Error("expected a confirmed extremum")
	}
	if ext.Index != 2 {
		t.Errorf("expected index 2, got %d", ext.Index)
	}
	if ext.Price != 15 {
		t.Errorf("expected price 15, got %v", ext.Price)
	}
}

func TestFindConfirmedTrough(t *testing.T) {
	candles := makeCandles(
		[]float64{15, 14, 9, 11, 12, 13},
		[]float64{14, 13, 8, 10, 11, 12},
	)

	ext := FindConfirmedExtremum(candles, ExtremumLow)
	if ext == nil {
		t.Fatal("expected an extremum")
	}
	if !ext.Confirmed {
		t.Error("expected a confirmed extremum")
	}
	if ext.Index != 2 || ext.Price != 8 {
		t.Errorf("expected index 2 price 8, got index %d price %v", ext.Index, ext.Price)
	}
}

func TestEarliestConfirmedPeakWins(t *testing.T) {
	// Two qualifying candidates; the earlier one must be returned even
	// though the later one prints a higher high.
	candles := makeCandles(
		[]float64{10, 11, 15, 14, 13, 12, 16, 15, 14, 13},
		[]float64{9, 10, 14, 13, 12, 11, 15, 14, 13, 12},
	)

	ext := FindConfirmedExtremum(candles, ExtremumHigh)
	if ext == nil {
		t.Fatal("expected an extremum")
	}
	if ext.Index != 2 {
		t.Errorf("expected earliest confirmed index 2, got %d", ext.Index)
	}
}

func TestFallbackToAbsoluteMaximum(t *testing.T) {
	// Monotonically rising highs never confirm, so the absolute maximum
	// is returned unconfirmed.
	candles := makeCandles(
		[]float64{10, 11, 12, 13, 14, 15},
		[]float64{9, 10, 11, 12, 13, 14},
	)

	ext := FindConfirmedExtremum(candles, ExtremumHigh)
	if ext == nil {
		t.Fatal("expected an extremum")
	}
	if ext.Confirmed {
		t.Error("expected unconfirmed fallback")
	}
	if ext.Index != 5 || ext.Price != 15 {
		t.Errorf("expected index 5 price 15, got index %d price %v", ext.Index, ext.Price)
	}
}

func TestShortSeriesUsesFallback(t *testing.T) {
	candles := makeCandles(
		[]float64{10, 14, 12},
		[]float64{9, 13, 11},
	)

	ext := FindConfirmedExtremum(candles, ExtremumHigh)
	if ext == nil {
		t.Fatal("expected an extremum")
	}
	if ext.Confirmed {
		t.Error("series below the confirmation minimum must not confirm")
	}
	if ext.Price != 14 {
		t.Errorf("expected price 14, got %v", ext.Price)
	}
}

func TestFallbackToAbsoluteMinimum(t *testing.T) {
	candles := makeCandles(
		[]float64{15, 14, 13, 12, 11, 10},
		[]float64{14, 13, 12, 11, 10, 9},
	)

	ext := FindConfirmedExtremum(candles, ExtremumLow)
	if ext == nil {
		t.Fatal("expected an extremum")
	}
	if ext.Confirmed {
		t.Error("expected unconfirmed fallback")
	}
	if ext.Index != 5 || ext.Price != 9 {
		t.Errorf("expected index 5 price 9, got index %d price %v", ext.Index, ext.Price)
	}
}
