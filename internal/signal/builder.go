// Package signal builds Fibonacci retracement signals from detected
// liquidity levels and confirmed extremums, and orchestrates batch
// generation across pairs and timeframes.
package signal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TradeFibSignals/web-fe-sub001/internal/analysis"
	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/seasonality"
)

// Errors returned by the builder when a setup does not qualify. Callers
// treat these as "no signal here", not as failures.
var (
	ErrNotMajorLevel   = errors.New("level is not major")
	ErrSeasonalityVeto = errors.New("seasonality bias does not permit this direction")
	ErrBadGeometry     = errors.New("extremum is on the wrong side of the level")
)

// entryRetracement is the golden-ratio pullback at which entries are placed.
const entryRetracement = 0.618

// stopBuffer places the stop loss 1% of the level-to-extremum range beyond
// the level, so a plain level retest does not stop the trade out.
const stopBuffer = 0.01

// fibRatios are the retracement levels precomputed on every signal.
// 0 sits at the extremum, 1 at the liquidity level.
var fibRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1.0}

// Builder constructs signals with fixed risk parameters.
type Builder struct {
	riskReward float64
	evaluator  *seasonality.Evaluator
}

// NewBuilder creates a signal builder. riskReward is the take-profit
// distance as a multiple of the entry-to-stop risk.
func NewBuilder(riskReward float64, evaluator *seasonality.Evaluator) *Builder {
	return &Builder{
		riskReward: riskReward,
		evaluator:  evaluator,
	}
}

// BuildLong constructs a long signal from a major sell-side level and the
// confirmed peak that followed it. The entry is the 0.618 retracement of
// the level-to-peak range, the stop sits just below the level, and the
// take profit is riskReward times the risk above the entry. The month's
// seasonality must be bullish or the setup is vetoed.
func (b *Builder) BuildLong(pair, timeframe string, level analysis.LiquidityLevel, peak *analysis.Extremum, now time.Time) (*database.Signal, error) {
	if !level.IsMajor {
		return nil, ErrNotMajorLevel
	}
	if peak.Price <= level.Price {
		return nil, fmt.Errorf("%w: peak %.8f at or below level %.8f", ErrBadGeometry, peak.Price, level.Price)
	}

	stat, err := b.monthStat(now)
	if err != nil {
		return nil, err
	}
	if stat.Bias != seasonality.Bullish {
		return nil, fmt.Errorf("%w: month bias is %s", ErrSeasonalityVeto, stat.Bias)
	}

	diff := peak.Price - level.Price
	entry := peak.Price - diff*entryRetracement
	stopLoss := level.Price - diff*stopBuffer
	risk := entry - stopLoss
	takeProfit := entry + b.riskReward*risk

	return b.assemble(pair, timeframe, database.TypeLong, entry, stopLoss, takeProfit, level, peak, diff, stat), nil
}

// BuildShort constructs a short signal from a major buy-side level and the
// confirmed trough that followed it, mirroring BuildLong. The month's
// seasonality must be bearish.
func (b *Builder) BuildShort(pair, timeframe string, level analysis.LiquidityLevel, trough *analysis.Extremum, now time.Time) (*database.Signal, error) {
	if !level.IsMajor {
		return nil, ErrNotMajorLevel
	}
	if trough.Price >= level.Price {
		return nil, fmt.Errorf("%w: trough %.8f at or above level %.8f", ErrBadGeometry, trough.Price, level.Price)
	}

	stat, err := b.monthStat(now)
	if err != nil {
		return nil, err
	}
	if stat.Bias != seasonality.Bearish {
		return nil, fmt.Errorf("%w: month bias is %s", ErrSeasonalityVeto, stat.Bias)
	}

	diff := level.Price - trough.Price
	entry := trough.Price + diff*entryRetracement
	stopLoss := level.Price + diff*stopBuffer
	risk := stopLoss - entry
	takeProfit := entry - b.riskReward*risk

	return b.assemble(pair, timeframe, database.TypeShort, entry, stopLoss, takeProfit, level, trough, diff, stat), nil
}

func (b *Builder) monthStat(now time.Time) (*seasonality.MonthlyStat, error) {
	return b.evaluator.StatForMonth(int(now.Month()) - 1)
}

func (b *Builder) assemble(pair, timeframe, signalType string, entry, stopLoss, takeProfit float64, level analysis.LiquidityLevel, extremum *analysis.Extremum, diff float64, stat *seasonality.MonthlyStat) *database.Signal {
	return &database.Signal{
		ID:                  uuid.NewString(),
		Pair:                pair,
		Timeframe:           timeframe,
		Type:                signalType,
		EntryPrice:          entry,
		StopLoss:            stopLoss,
		TakeProfit:          takeProfit,
		RiskRewardRatio:     b.riskReward,
		MajorLevelPrice:     level.Price,
		PeakTroughPrice:     extremum.Price,
		FibLevels:           fibLevels(signalType, extremum.Price, diff),
		Seasonality:         string(stat.Bias),
		PositiveProbability: stat.PositiveProbability,
		Status:              database.StatusWaiting,
	}
}

// fibLevels precomputes the price at each retracement ratio. For longs
// prices descend from the peak toward the level; for shorts they ascend
// from the trough.
func fibLevels(signalType string, extremumPrice, diff float64) []database.FibLevel {
	levels := make([]database.FibLevel, 0, len(fibRatios))
	for _, ratio := range fibRatios {
		price := extremumPrice - diff*ratio
		if signalType == database.TypeShort {
			price = extremumPrice + diff*ratio
		}
		levels = append(levels, database.FibLevel{Level: ratio, Price: price})
	}
	return levels
}
