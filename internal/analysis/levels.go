package analysis

import (
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

// LevelSide identifies which side of the book a liquidity level sits on.
type LevelSide string

const (
	// BuySide (BSL) levels form at swing lows, where buy stops cluster.
	BuySide LevelSide = "BSL"
	// SellSide (SSL) levels form at swing highs, where sell stops cluster.
	SellSide LevelSide = "SSL"
)

// LiquidityLevel is a swing high/low price level detected in a candle series.
// Levels are transient analysis output; they are recomputed per run and are
// never revised once emitted.
type LiquidityLevel struct {
	Price   float64   `json:"price"`
	Time    int64     `json:"time"` // open time of the swing candle, epoch ms
	Side    LevelSide `json:"side"`
	IsMajor bool      `json:"is_major"`
}

// LevelSet holds detected levels split by side, each ordered by time.
type LevelSet struct {
	BuySide  []LiquidityLevel `json:"buy_side"`
	SellSide []LiquidityLevel `json:"sell_side"`
}

// LevelDetector scans candle series for liquidity levels.
type LevelDetector struct {
	swingStrength  int     // candles required on each side of a swing point
	majorThreshold float64 // percent excursion that flags a level as major
}

// NewLevelDetector creates a detector with the given swing strength and
// major-level threshold (in percent).
func NewLevelDetector(swingStrength int, majorThreshold float64) *LevelDetector {
	if swingStrength < 1 {
		swingStrength = 1
	}
	return &LevelDetector{
		swingStrength:  swingStrength,
		majorThreshold: majorThreshold,
	}
}

type swingPoint struct {
	index int
	price float64
	time  int64
	side  LevelSide
}

// DetectLevels finds swing highs and lows in a single pass over the series.
// A candle is a swing high when its high exceeds the highs of swingStrength
// candles on each side (symmetric for lows). A level is major when the
// percentage move from it to the next opposing swing exceeds the threshold.
// Fewer than 2*swingStrength+1 candles yields an empty result.
func (d *LevelDetector) DetectLevels(candles []marketdata.Candle) LevelSet {
	result := LevelSet{}

	if len(candles) < 2*d.swingStrength+1 {
		return result
	}

	swings := d.findSwingPoints(candles)

	for i, sp := range swings {
		level := LiquidityLevel{
			Price: sp.price,
			Time:  sp.time,
			Side:  sp.side,
		}

		// Excursion to the next opposing swing decides significance.
		for _, next := range swings[i+1:] {
			if next.side == sp.side {
				continue
			}
			movePct := (next.price - sp.price) / sp.price * 100
			if movePct < 0 {
				movePct = -movePct
			}
			level.IsMajor = movePct > d.majorThreshold
			break
		}

		switch sp.side {
		case BuySide:
			result.BuySide = append(result.BuySide, level)
		case SellSide:
			result.SellSide = append(result.SellSide, level)
		}
	}

	return result
}

func (d *LevelDetector) findSwingPoints(candles []marketdata.Candle) []swingPoint {
	var swings []swingPoint
	s := d.swingStrength

	for i := s; i < len(candles)-s; i++ {
		if d.isSwingHigh(candles, i) {
			swings = append(swings, swingPoint{
				index: i,
				price: candles[i].High,
				time:  candles[i].OpenTime,
				side:  SellSide,
			})
		}
		if d.isSwingLow(candles, i) {
			swings = append(swings, swingPoint{
				index: i,
				price: candles[i].Low,
				time:  candles[i].OpenTime,
				side:  BuySide,
			})
		}
	}

	return swings
}

func (d *LevelDetector) isSwingHigh(candles []marketdata.Candle, i int) bool {
	for j := i - d.swingStrength; j <= i+d.swingStrength; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= candles[i].High {
			return false
		}
	}
	return true
}

func (d *LevelDetector) isSwingLow(candles []marketdata.Candle, i int) bool {
	for j := i - d.swingStrength; j <= i+d.swingStrength; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= candles[i].Low {
			return false
		}
	}
	return true
}

// MajorLevels filters a level slice down to major levels only.
func MajorLevels(levels []LiquidityLevel) []LiquidityLevel {
	var major []LiquidityLevel
	for _, l := range levels {
		if l.IsMajor {
			major = append(major, l)
		}
	}
	return major
}
