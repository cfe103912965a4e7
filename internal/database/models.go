package database

import (
	"time"
)

// Signal status constants. Transitions are monotonic:
// waiting -> active -> completed, or waiting/active -> expired.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
)

// Signal type constants
const (
	TypeLong  = "long"
	TypeShort = "short"
)

// Exit type constants
const (
	ExitTakeProfit = "tp"
	ExitStopLoss   = "sl"
	ExitManual     = "manual"
	ExitExpired    = "expired"
)

// FibLevel is one retracement level of a signal, price precomputed at
// signal creation.
type FibLevel struct {
	Level float64 `json:"level"` // retracement ratio, e.g. 0.618
	Price float64 `json:"price"`
}

// Signal represents a Fibonacci retracement signal in the database.
// The builder owns the entry/level/fib fields, which never change after
// insert; the lifecycle manager exclusively owns status and exit fields.
type Signal struct {
	ID                  string     `json:"id"`
	Pair                string     `json:"pair"`
	Timeframe           string     `json:"timeframe"`
	Type                string     `json:"type"` // long or short
	EntryPrice          float64    `json:"entry_price"`
	StopLoss            float64    `json:"stop_loss"`
	TakeProfit          float64    `json:"take_profit"`
	RiskRewardRatio     float64    `json:"risk_reward_ratio"`
	MajorLevelPrice     float64    `json:"major_level_price"`
	PeakTroughPrice     float64    `json:"peak_trough_price"`
	FibLevels           []FibLevel `json:"fib_levels"`
	Seasonality         string     `json:"seasonality"`
	PositiveProbability float64    `json:"positive_probability"`
	Status              string     `json:"status"`
	EntryHit            bool       `json:"entry_hit"`
	EntryHitTime        *int64     `json:"entry_hit_time,omitempty"` // epoch ms
	ExitPrice           *float64   `json:"exit_price,omitempty"`
	ExitTime            *int64     `json:"exit_time,omitempty"` // epoch ms
	ExitType            *string    `json:"exit_type,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the signal is in a terminal state.
func (s *Signal) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusExpired
}

// StatusUpdate carries the lifecycle fields written during a status
// transition. Nil pointers leave the column untouched.
type StatusUpdate struct {
	Status       string
	EntryHit     *bool
	EntryHitTime *int64
	ExitPrice    *float64
	ExitTime     *int64
	ExitType     *string
}
