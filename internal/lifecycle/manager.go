// Package lifecycle reconciles persisted signals against market candles,
// driving the waiting -> active -> completed/expired state machine.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TradeFibSignals/web-fe-sub001/internal/database"
	"github.com/TradeFibSignals/web-fe-sub001/internal/events"
	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

// Repository is the persistence surface the manager needs.
type Repository interface {
	QueryActiveSignals(ctx context.Context, pair, timeframe string) ([]*database.Signal, error)
	UpdateSignalStatus(ctx context.Context, id, expectedPrior string, update database.StatusUpdate) (bool, error)
}

// CandleSource replays candles since a given open time.
type CandleSource interface {
	GetCandlesSince(ctx context.Context, pair, timeframe string, since int64, limit int) ([]marketdata.Candle, error)
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Checked   int `json:"checked"`
	Activated int `json:"activated"`
	Completed int `json:"completed"`
	Expired   int `json:"expired"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// Manager drives signal state transitions. All writes go through
// conditional status updates, so concurrent reconcilers converge on the
// same terminal state and a pass can be repeated safely.
type Manager struct {
	repo          Repository
	source        CandleSource
	bus           *events.EventBus
	expiryPeriods int
	logger        zerolog.Logger
	now           func() time.Time
}

// NewManager creates a lifecycle manager. expiryPeriods is the number of
// timeframe periods a signal may sit in one state before going stale.
func NewManager(repo Repository, source CandleSource, bus *events.EventBus, expiryPeriods int, logger zerolog.Logger) *Manager {
	return &Manager{
		repo:          repo,
		source:        source,
		bus:           bus,
		expiryPeriods: expiryPeriods,
		logger:        logger.With().Str("component", "lifecycle").Logger(),
		now:           time.Now,
	}
}

// Reconcile runs one pass over all waiting and active signals. Per-signal
// failures are counted and logged, never fatal to the pass.
func (m *Manager) Reconcile(ctx context.Context) (Stats, error) {
	stats := Stats{}

	signals, err := m.repo.QueryActiveSignals(ctx, "", "")
	if err != nil {
		return stats, fmt.Errorf("failed to load open signals: %w", err)
	}

	for _, signal := range signals {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Checked++
		if err := m.reconcileSignal(ctx, signal, &stats); err != nil {
			stats.Errors++
			m.logger.Error().Err(err).Str("signal_id", signal.ID).Msg("signal reconciliation failed")
		}
	}

	m.logger.Info().
		Int("checked", stats.Checked).
		Int("activated", stats.Activated).
		Int("completed", stats.Completed).
		Int("expired", stats.Expired).
		Int("conflicts", stats.Conflicts).
		Msg("reconciliation pass finished")

	return stats, nil
}

// reconcileSignal replays candles since the signal's anchor time and
// applies transitions in candle order. A waiting signal that activates
// mid-replay keeps consuming the remaining candles as an active one, so a
// single pass can take it all the way to completed.
func (m *Manager) reconcileSignal(ctx context.Context, signal *database.Signal, stats *Stats) error {
	period, err := marketdata.TimeframeDuration(signal.Timeframe)
	if err != nil {
		return err
	}

	anchor := m.anchorTime(signal)
	deadline := anchor.Add(time.Duration(m.expiryPeriods) * period)

	candles, err := m.source.GetCandlesSince(ctx, signal.Pair, signal.Timeframe, anchor.UnixMilli(), m.expiryPeriods+8)
	if err != nil {
		return fmt.Errorf("candle replay fetch failed: %w", err)
	}

	for _, candle := range candles {
		if candle.Time().After(deadline) {
			return m.expire(ctx, signal, deadline, stats)
		}

		switch signal.Status {
		case database.StatusWaiting:
			if !candle.Contains(signal.EntryPrice) {
				continue
			}
			ok, err := m.activate(ctx, signal, candle.OpenTime)
			if err != nil {
				return err
			}
			if !ok {
				stats.Conflicts++
				return nil
			}
			stats.Activated++
			// The expiry clock restarts from the fill.
			deadline = candle.Time().Add(time.Duration(m.expiryPeriods) * period)

		case database.StatusActive:
			exitType, exitPrice, hit := exitFor(signal, candle)
			if !hit {
				continue
			}
			ok, err := m.complete(ctx, signal, exitType, exitPrice, candle.OpenTime)
			if err != nil {
				return err
			}
			if !ok {
				stats.Conflicts++
				return nil
			}
			stats.Completed++
			return nil

		default:
			return nil
		}
	}

	if m.now().After(deadline) {
		return m.expire(ctx, signal, deadline, stats)
	}
	return nil
}

// anchorTime is where the replay window and expiry clock start: creation
// for waiting signals, the entry fill for active ones.
func (m *Manager) anchorTime(signal *database.Signal) time.Time {
	if signal.Status == database.StatusActive && signal.EntryHitTime != nil {
		return time.UnixMilli(*signal.EntryHitTime)
	}
	return signal.CreatedAt
}

// exitFor checks whether the candle touched the stop loss or take profit.
// When one candle spans both, the stop loss wins; intrabar ordering is
// unknowable from OHLC data and the conservative reading books the loss.
func exitFor(signal *database.Signal, candle marketdata.Candle) (exitType string, exitPrice float64, hit bool) {
	if candle.Contains(signal.StopLoss) {
		return database.ExitStopLoss, signal.StopLoss, true
	}
	if candle.Contains(signal.TakeProfit) {
		return database.ExitTakeProfit, signal.TakeProfit, true
	}
	return "", 0, false
}

func (m *Manager) activate(ctx context.Context, signal *database.Signal, hitTime int64) (bool, error) {
	entryHit := true
	update := database.StatusUpdate{
		Status:       database.StatusActive,
		EntryHit:     &entryHit,
		EntryHitTime: &hitTime,
	}

	ok, err := m.repo.UpdateSignalStatus(ctx, signal.ID, database.StatusWaiting, update)
	if err != nil {
		return false, fmt.Errorf("activation update failed: %w", err)
	}
	if !ok {
		m.logger.Debug().Str("signal_id", signal.ID).Msg("activation lost to concurrent update")
		return false, nil
	}

	signal.Status = database.StatusActive
	signal.EntryHit = true
	signal.EntryHitTime = &hitTime

	m.logger.Info().
		Str("signal_id", signal.ID).
		Str("pair", signal.Pair).
		Float64("entry", signal.EntryPrice).
		Msg("signal activated")
	m.bus.PublishSignalTransition(events.EventSignalActivated, signal.ID, signal.Pair, signal.Timeframe, database.StatusActive)

	return true, nil
}

func (m *Manager) complete(ctx context.Context, signal *database.Signal, exitType string, exitPrice float64, exitTime int64) (bool, error) {
	update := database.StatusUpdate{
		Status:    database.StatusCompleted,
		ExitPrice: &exitPrice,
		ExitTime:  &exitTime,
		ExitType:  &exitType,
	}

	ok, err := m.repo.UpdateSignalStatus(ctx, signal.ID, database.StatusActive, update)
	if err != nil {
		return false, fmt.Errorf("completion update failed: %w", err)
	}
	if !ok {
		m.logger.Debug().Str("signal_id", signal.ID).Msg("completion lost to concurrent update")
		return false, nil
	}

	signal.Status = database.StatusCompleted

	m.logger.Info().
		Str("signal_id", signal.ID).
		Str("pair", signal.Pair).
		Str("exit_type", exitType).
		Float64("exit_price", exitPrice).
		Msg("signal completed")
	m.bus.PublishSignalTransition(events.EventSignalCompleted, signal.ID, signal.Pair, signal.Timeframe, database.StatusCompleted)

	return true, nil
}

func (m *Manager) expire(ctx context.Context, signal *database.Signal, deadline time.Time, stats *Stats) error {
	exitType := database.ExitExpired
	exitTime := deadline.UnixMilli()
	update := database.StatusUpdate{
		Status:   database.StatusExpired,
		ExitTime: &exitTime,
		ExitType: &exitType,
	}

	ok, err := m.repo.UpdateSignalStatus(ctx, signal.ID, signal.Status, update)
	if err != nil {
		return fmt.Errorf("expiry update failed: %w", err)
	}
	if !ok {
		stats.Conflicts++
		return nil
	}
	stats.Expired++

	m.logger.Info().
		Str("signal_id", signal.ID).
		Str("pair", signal.Pair).
		Str("prior_status", signal.Status).
		Msg("signal expired")
	m.bus.PublishSignalTransition(events.EventSignalExpired, signal.ID, signal.Pair, signal.Timeframe, database.StatusExpired)

	signal.Status = database.StatusExpired
	return nil
}
