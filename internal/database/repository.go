package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TradeFibSignals/web-fe-sub001/internal/marketdata"
)

// ErrSignalNotFound is returned when a signal id does not exist.
var ErrSignalNotFound = errors.New("signal not found")

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// SIGNALS
// ============================================================================

const signalColumns = `id, pair, timeframe, signal_type, entry_price, stop_loss, take_profit,
	risk_reward_ratio, major_level_price, peak_trough_price, fib_levels, seasonality,
	positive_probability, status, entry_hit, entry_hit_time, exit_price, exit_time,
	exit_type, created_at, updated_at`

// InsertSignal inserts a new signal and fills in its timestamps.
func (r *Repository) InsertSignal(ctx context.Context, signal *Signal) error {
	fibJSON, err := json.Marshal(signal.FibLevels)
	if err != nil {
		return fmt.Errorf("failed to marshal fib levels: %w", err)
	}

	query := `
		INSERT INTO signals (id, pair, timeframe, signal_type, entry_price, stop_loss, take_profit,
			risk_reward_ratio, major_level_price, peak_trough_price, fib_levels, seasonality,
			positive_probability, status, entry_hit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		signal.ID, signal.Pair, signal.Timeframe, signal.Type, signal.EntryPrice,
		signal.StopLoss, signal.TakeProfit, signal.RiskRewardRatio, signal.MajorLevelPrice,
		signal.PeakTroughPrice, fibJSON, signal.Seasonality, signal.PositiveProbability,
		signal.Status, signal.EntryHit,
	).Scan(&signal.CreatedAt, &signal.UpdatedAt)
}

// UpdateSignalStatus transitions a signal's status with optimistic
// concurrency: the row is only written when its current status still equals
// expectedPrior. Returns false without error when another writer got there
// first, which callers treat as a benign conflict.
func (r *Repository) UpdateSignalStatus(ctx context.Context, id, expectedPrior string, update StatusUpdate) (bool, error) {
	query := `
		UPDATE signals
		SET status = $3,
		    entry_hit = COALESCE($4, entry_hit),
		    entry_hit_time = COALESCE($5, entry_hit_time),
		    exit_price = COALESCE($6, exit_price),
		    exit_time = COALESCE($7, exit_time),
		    exit_type = COALESCE($8, exit_type)
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Pool.Exec(
		ctx, query,
		id, expectedPrior, update.Status,
		update.EntryHit, update.EntryHitTime,
		update.ExitPrice, update.ExitTime, update.ExitType,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update signal status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetSignalByID retrieves a signal by ID.
func (r *Repository) GetSignalByID(ctx context.Context, id string) (*Signal, error) {
	query := fmt.Sprintf(`SELECT %s FROM signals WHERE id = $1`, signalColumns)

	signal, err := scanSignal(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignalNotFound
		}
		return nil, err
	}
	return signal, nil
}

// QueryActiveSignals retrieves signals still being tracked (waiting or
// active), optionally filtered by pair and timeframe.
func (r *Repository) QueryActiveSignals(ctx context.Context, pair, timeframe string) ([]*Signal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM signals
		WHERE status IN ('waiting', 'active')
	`, signalColumns)

	args := []interface{}{}
	if pair != "" {
		args = append(args, pair)
		query += fmt.Sprintf(" AND pair = $%d", len(args))
	}
	if timeframe != "" {
		args = append(args, timeframe)
		query += fmt.Sprintf(" AND timeframe = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	return r.querySignals(ctx, query, args...)
}

// QuerySignalsByStatus retrieves signals with the given status, newest first.
func (r *Repository) QuerySignalsByStatus(ctx context.Context, status string, limit int) ([]*Signal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM signals
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, signalColumns)
	return r.querySignals(ctx, query, status, limit)
}

// QuerySignals retrieves signals with optional filters, newest first.
func (r *Repository) QuerySignals(ctx context.Context, status, pair, timeframe string, limit int) ([]*Signal, error) {
	query := fmt.Sprintf(`SELECT %s FROM signals WHERE 1=1`, signalColumns)

	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if pair != "" {
		args = append(args, pair)
		query += fmt.Sprintf(" AND pair = $%d", len(args))
	}
	if timeframe != "" {
		args = append(args, timeframe)
		query += fmt.Sprintf(" AND timeframe = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	return r.querySignals(ctx, query, args...)
}

// HasOpenSignal reports whether a waiting or active signal already exists
// for the pair/timeframe, used to avoid stacking duplicate setups.
func (r *Repository) HasOpenSignal(ctx context.Context, pair, timeframe string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM signals
			WHERE pair = $1 AND timeframe = $2 AND status IN ('waiting', 'active')
		)
	`
	if err := r.db.Pool.QueryRow(ctx, query, pair, timeframe).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open signals: %w", err)
	}
	return exists, nil
}

func (r *Repository) querySignals(ctx context.Context, query string, args ...interface{}) ([]*Signal, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*Signal, error) {
	signal := &Signal{}
	var fibJSON []byte
	err := row.Scan(
		&signal.ID, &signal.Pair, &signal.Timeframe, &signal.Type, &signal.EntryPrice,
		&signal.StopLoss, &signal.TakeProfit, &signal.RiskRewardRatio, &signal.MajorLevelPrice,
		&signal.PeakTroughPrice, &fibJSON, &signal.Seasonality, &signal.PositiveProbability,
		&signal.Status, &signal.EntryHit, &signal.EntryHitTime, &signal.ExitPrice,
		&signal.ExitTime, &signal.ExitType, &signal.CreatedAt, &signal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fibJSON, &signal.FibLevels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fib levels: %w", err)
	}
	return signal, nil
}

// ============================================================================
// CANDLES
// ============================================================================

// UpsertCandles stores fetched candles, ignoring rows already present.
func (r *Repository) UpsertCandles(ctx context.Context, pair, timeframe string, candles []marketdata.Candle) error {
	query := `
		INSERT INTO candles (pair, timeframe, open_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pair, timeframe, open_time) DO NOTHING
	`
	for _, c := range candles {
		if _, err := r.db.Pool.Exec(ctx, query, pair, timeframe, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to upsert candle at %d: %w", c.OpenTime, err)
		}
	}
	return nil
}

// QueryCandleRange retrieves stored candles for a pair/timeframe between
// start and end open times (epoch ms, inclusive), ordered ascending.
func (r *Repository) QueryCandleRange(ctx context.Context, pair, timeframe string, start, end int64) ([]marketdata.Candle, error) {
	query := `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE pair = $1 AND timeframe = $2 AND open_time >= $3 AND open_time <= $4
		ORDER BY open_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, pair, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []marketdata.Candle
	for rows.Next() {
		var c marketdata.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
