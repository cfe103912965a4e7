package seasonality

import (
	"fmt"
)

// Bias classifies a month's historical tendency.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

// Classification thresholds: at or above bullishThreshold the month is
// bullish, at or below bearishThreshold it is bearish.
const (
	bullishThreshold = 60.0
	bearishThreshold = 40.0
)

// MonthlyStat holds the derived seasonality numbers for one month.
type MonthlyStat struct {
	Month               int     `json:"month"` // 0 = January
	PositiveProbability float64 `json:"positive_probability"`
	SampleYears         int     `json:"sample_years"`
	Bias                Bias    `json:"bias"`
}

// monthlyReturns is the fixed table of historical BTC monthly returns in
// percent, 2014 through 2023, indexed by month. A month with no data for a
// year simply omits that year.
var monthlyReturns = [12][]float64{
	{-9.9, -33.1, -14.8, -0.04, -25.4, -8.6, 29.9, 14.5, -16.7, 39.6},  // Jan
	{11.6, 18.4, 20.1, 23.1, 0.5, 11.1, -8.6, 36.8, 12.2, 0.03},        // Feb
	{-17.3, -4.4, -5.4, -9.1, -32.9, 7.0, -24.9, 29.8, 5.4, 22.9},      // Mar
	{-1.6, -3.5, 7.3, 26.6, 33.4, 28.9, 34.3, -1.9, -17.2, 2.8},        // Apr
	{39.5, -3.2, 18.8, 52.7, -18.9, 62.0, 9.6, -35.3, -15.6, -6.9},     // May
	{2.2, 15.2, 27.1, 10.4, -14.6, 26.7, -3.2, -6.0, -37.3, 11.9},      // Jun
	{-9.7, -6.6, -7.5, 17.9, 20.9, -6.5, 24.0, 18.2, 16.8, -4.0},       // Jul
	{-17.5, -18.7, -7.6, 65.3, -9.2, -4.6, 2.8, 13.8, -13.9, -11.3},    // Aug
	{-19.0, 2.4, 6.0, -7.4, -5.9, -13.4, -7.5, -7.0, -3.1, 4.0},        // Sep
	{-12.9, 33.5, 14.7, 47.8, -3.8, 10.3, 28.0, 40.0, 5.6, 28.5},       // Oct
	{12.8, 19.3, 5.4, 53.5, -36.6, -17.3, 42.9, -7.1, -16.2, 8.8},      // Nov
	{-15.1, 13.8, 30.8, 38.9, -7.1, -5.1, 47.8, -18.9, -3.6, 12.2},     // Dec
}

// Evaluator computes month-of-year positive-return probabilities from the
// historical returns table. It is a pure function of static data; results
// are cacheable indefinitely per month but always recomputable on demand.
type Evaluator struct{}

// NewEvaluator creates a seasonality evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// MonthlyPositiveProbability returns the percentage of sampled years in
// which the given month (0-11) closed positive.
func (e *Evaluator) MonthlyPositiveProbability(month int) (float64, error) {
	if month < 0 || month > 11 {
		return 0, fmt.Errorf("month out of range: %d", month)
	}

	returns := monthlyReturns[month]
	if len(returns) == 0 {
		return 0, fmt.Errorf("no historical data for month %d", month)
	}

	positive := 0
	for _, r := range returns {
		if r > 0 {
			positive++
		}
	}

	return float64(positive) / float64(len(returns)) * 100, nil
}

// Classify maps a positive-return probability to a bias. Probabilities at
// 60 or above are bullish, at 40 or below bearish, anything between neutral.
func Classify(probability float64) Bias {
	switch {
	case probability >= bullishThreshold:
		return Bullish
	case probability <= bearishThreshold:
		return Bearish
	default:
		return Neutral
	}
}

// StatForMonth computes the full seasonality stat for a month.
func (e *Evaluator) StatForMonth(month int) (*MonthlyStat, error) {
	probability, err := e.MonthlyPositiveProbability(month)
	if err != nil {
		return nil, err
	}

	return &MonthlyStat{
		Month:               month,
		PositiveProbability: probability,
		SampleYears:         len(monthlyReturns[month]),
		Bias:                Classify(probability),
	}, nil
}

// AllStats computes seasonality stats for every month.
func (e *Evaluator) AllStats() ([]MonthlyStat, error) {
	stats := make([]MonthlyStat, 0, 12)
	for month := 0; month < 12; month++ {
		stat, err := e.StatForMonth(month)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}
	return stats, nil
}
