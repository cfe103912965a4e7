package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TradeFibSignals/web-fe-sub001/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.Info("Connected to PostgreSQL database", "database", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	logging.Info("Running database migrations...")

	migrations := []string{
		// Signals table: the central persisted entity. Entry/level/fib
		// fields are immutable after insert; status/exit fields are owned
		// by the lifecycle manager.
		`CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			pair VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			signal_type VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			risk_reward_ratio DECIMAL(10, 4) NOT NULL,
			major_level_price DECIMAL(20, 8) NOT NULL,
			peak_trough_price DECIMAL(20, 8) NOT NULL,
			fib_levels JSONB NOT NULL,
			seasonality VARCHAR(10) NOT NULL,
			positive_probability DECIMAL(5, 2) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'waiting',
			entry_hit BOOLEAN NOT NULL DEFAULT FALSE,
			entry_hit_time BIGINT,
			exit_price DECIMAL(20, 8),
			exit_time BIGINT,
			exit_type VARCHAR(10),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_pair_timeframe ON signals(pair, timeframe)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at)`,

		// Candle history for dashboard range queries.
		`CREATE TABLE IF NOT EXISTS candles (
			pair VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			open_time BIGINT NOT NULL,
			open DECIMAL(20, 8) NOT NULL,
			high DECIMAL(20, 8) NOT NULL,
			low DECIMAL(20, 8) NOT NULL,
			close DECIMAL(20, 8) NOT NULL,
			volume DECIMAL(30, 8) NOT NULL,
			PRIMARY KEY (pair, timeframe, open_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_open_time ON candles(open_time)`,

		// updated_at trigger for signals
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = NOW();
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,
		`DROP TRIGGER IF EXISTS update_signals_updated_at ON signals`,
		`CREATE TRIGGER update_signals_updated_at BEFORE UPDATE ON signals
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logging.Info("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
