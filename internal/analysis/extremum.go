package analysis

import (
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

// ExtremumDirection selects which extremum to look for.
type ExtremumDirection string

const (
	ExtremumHigh ExtremumDirection = "high"
	ExtremumLow  ExtremumDirection = "low"
)

// Extremum is a confirmed local peak or trough after a liquidity level.
type Extremum struct {
	Index     int     `json:"index"`
	Price     float64 `json:"price"`
	Time      int64   `json:"time"`
	Confirmed bool    `json:"confirmed"` // false when the absolute-extreme fallback was used
}

// confirmationWindow is the number of strictly weaker candles required
// after a candidate before it counts as confirmed.
const confirmationWindow = 3

// minCandlesForConfirmation is the smallest series that can hold a candidate
// (offset 2) plus its confirmation window.
const minCandlesForConfirmation = 5

// FindConfirmedExtremum locates the first confirmed local extremum in the
// candles following a level. For the high case a candidate at index i
// qualifies when its high exceeds the highs at i-1 and i-2 and the next
// three candles all print strictly lower highs; the low case is symmetric.
// The earliest qualifying index wins. When no candidate confirms, or the
// series is too short to attempt confirmation, the absolute maximum high
// (or minimum low) is returned instead so that a level followed by any
// candles always produces a result. An empty series yields nil.
func FindConfirmedExtremum(candles []marketdata.Candle, direction ExtremumDirection) *Extremum {
	if len(candles) == 0 {
		return nil
	}

	if len(candles) >= minCandlesForConfirmation {
		if ext := findConfirmed(candles, direction); ext != nil {
			return ext
		}
	}

	return absoluteExtremum(candles, direction)
}

func findConfirmed(candles []marketdata.Candle, direction ExtremumDirection) *Extremum {
	for i := 2; i+confirmationWindow < len(candles); i++ {
		if isCandidate(candles, i, direction) && isConfirmed(candles, i, direction) {
			return &Extremum{
				Index:     i,
				Price:     extremePrice(candles[i], direction),
				Time:      candles[i].OpenTime,
				Confirmed: true,
			}
		}
	}
	return nil
}

func isCandidate(candles []marketdata.Candle, i int, direction ExtremumDirection) bool {
	if direction == ExtremumHigh {
		return candles[i].High > candles[i-1].High && candles[i].High > candles[i-2].High
	}
	return candles[i].Low < candles[i-1].Low && candles[i].Low < candles[i-2].Low
}

func isConfirmed(candles []marketdata.Candle, i int, direction ExtremumDirection) bool {
	for j := i + 1; j <= i+confirmationWindow; j++ {
		if direction == ExtremumHigh {
			if candles[j].High >= candles[i].High {
				return false
			}
		} else {
			if candles[j].Low <= candles[i].Low {
				return false
			}
		}
	}
	return true
}

func absoluteExtremum(candles []marketdata.Candle, direction ExtremumDirection) *Extremum {
	best := 0
	for i := 1; i < len(candles); i++ {
		if direction == ExtremumHigh {
			if candles[i].High > candles[best].High {
				best = i
			}
		} else {
			if candles[i].Low < candles[best].Low {
				best = i
			}
		}
	}

	return &Extremum{
		Index:     best,
		Price:     extremePrice(candles[best], direction),
		Time:      candles[best].OpenTime,
		Confirmed: false,
	}
}

func extremePrice(c marketdata.Candle, direction ExtremumDirection) float64 {
	if direction == ExtremumHigh {
		return c.High
	}
	return c.Low
}
