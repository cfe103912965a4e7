package marketdata

import (
	"fmt"
	"time"
)

// Candle represents a single OHLC candle. Candles within a series are
// ordered strictly by OpenTime with no duplicate timestamps.
type Candle struct {
	OpenTime int64   `json:"open_time"` // epoch milliseconds
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the candle open time as a time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime)
}

// Contains reports whether price falls within the candle's [low, high] range.
func (c Candle) Contains(price float64) bool {
	return price >= c.Low && price <= c.High
}

// Timeframe represents a chart timeframe
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// TimeframeDuration returns the wall-clock duration of one candle period.
func TimeframeDuration(timeframe string) (time.Duration, error) {
	switch Timeframe(timeframe) {
	case TF1m:
		return time.Minute, nil
	case TF5m:
		return 5 * time.Minute, nil
	case TF15m:
		return 15 * time.Minute, nil
	case TF1h:
		return time.Hour, nil
	case TF4h:
		return 4 * time.Hour, nil
	case TF1d:
		return 24 * time.Hour, nil
	case TF1w:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %s", timeframe)
	}
}

// ValidTimeframe reports whether the timeframe string is supported.
func ValidTimeframe(timeframe string) bool {
	_, err := TimeframeDuration(timeframe)
	return err == nil
}
