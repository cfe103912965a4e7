package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	MarketDataConfig MarketDataConfig `json:"market_data"`
	SignalConfig     SignalConfig     `json:"signals"`
	AuthConfig       AuthConfig       `json:"auth"`
	LoggingConfig    LoggingConfig    `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // seconds
	WriteTimeout    int    `json:"write_timeout"`    // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
	ProductionMode  bool   `json:"production_mode"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// MarketDataConfig holds the upstream candle provider configuration.
// Endpoints are tried in order; the first successful response wins.
type MarketDataConfig struct {
	Endpoints      []string      `json:"endpoints"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// SignalConfig holds detection and lifecycle parameters
type SignalConfig struct {
	Pairs             []string      `json:"pairs"`
	Timeframes        []string      `json:"timeframes"`
	SwingStrength     int           `json:"swing_strength"`     // candles each side of a swing point
	MajorThreshold    float64       `json:"major_threshold"`    // percent move that makes a level major
	RiskReward        float64       `json:"risk_reward"`        // TP distance as a multiple of risk
	ExpiryPeriods     int           `json:"expiry_periods"`     // timeframe periods before a signal goes stale
	CandleLimit       int           `json:"candle_limit"`       // candles fetched per detection run
	GenerationBudget  time.Duration `json:"generation_budget"`  // wall-clock budget for a batch run
	ReconcileInterval time.Duration `json:"reconcile_interval"` // scheduler tick
	WorkerCount       int           `json:"worker_count"`
}

// AuthConfig holds the static API token required by write endpoints
type AuthConfig struct {
	APIToken string `json:"api_token"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// Load builds the configuration from an optional JSON file plus environment
// overrides. Environment variables always win.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	applyEnv(cfg)

	if len(cfg.MarketDataConfig.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one market data endpoint is required")
	}
	if cfg.SignalConfig.SwingStrength < 1 {
		return nil, fmt.Errorf("swing strength must be >= 1, got %d", cfg.SignalConfig.SwingStrength)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "fibsignals",
			Password: "fibsignals",
			Database: "fibsignals",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled:  true,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		MarketDataConfig: MarketDataConfig{
			Endpoints: []string{
				"https://api.binance.com",
				"https://api1.binance.com",
				"https://api2.binance.com",
			},
			RequestTimeout: 10 * time.Second,
		},
		SignalConfig: SignalConfig{
			Pairs:             []string{"BTCUSDT", "ETHUSDT"},
			Timeframes:        []string{"1h", "4h", "1d"},
			SwingStrength:     5,
			MajorThreshold:    1.5,
			RiskReward:        3,
			ExpiryPeriods:     96,
			CandleLimit:       500,
			GenerationBudget:  45 * time.Second,
			ReconcileInterval: time.Minute,
			WorkerCount:       4,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

func applyEnv(cfg *Config) {
	// Server config
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	// Market data config
	if endpoints := os.Getenv("MARKET_DATA_ENDPOINTS"); endpoints != "" {
		cfg.MarketDataConfig.Endpoints = splitAndTrim(endpoints)
	}
	cfg.MarketDataConfig.RequestTimeout = getEnvDurationOrDefault("MARKET_DATA_TIMEOUT", cfg.MarketDataConfig.RequestTimeout)

	// Signal config
	if pairs := os.Getenv("SIGNAL_PAIRS"); pairs != "" {
		cfg.SignalConfig.Pairs = splitAndTrim(pairs)
	}
	if timeframes := os.Getenv("SIGNAL_TIMEFRAMES"); timeframes != "" {
		cfg.SignalConfig.Timeframes = splitAndTrim(timeframes)
	}
	cfg.SignalConfig.SwingStrength = getEnvIntOrDefault("SIGNAL_SWING_STRENGTH", cfg.SignalConfig.SwingStrength)
	cfg.SignalConfig.MajorThreshold = getEnvFloatOrDefault("SIGNAL_MAJOR_THRESHOLD", cfg.SignalConfig.MajorThreshold)
	cfg.SignalConfig.RiskReward = getEnvFloatOrDefault("SIGNAL_RISK_REWARD", cfg.SignalConfig.RiskReward)
	cfg.SignalConfig.ExpiryPeriods = getEnvIntOrDefault("SIGNAL_EXPIRY_PERIODS", cfg.SignalConfig.ExpiryPeriods)
	cfg.SignalConfig.CandleLimit = getEnvIntOrDefault("SIGNAL_CANDLE_LIMIT", cfg.SignalConfig.CandleLimit)
	cfg.SignalConfig.GenerationBudget = getEnvDurationOrDefault("SIGNAL_GENERATION_BUDGET", cfg.SignalConfig.GenerationBudget)
	cfg.SignalConfig.ReconcileInterval = getEnvDurationOrDefault("RECONCILE_INTERVAL", cfg.SignalConfig.ReconcileInterval)
	cfg.SignalConfig.WorkerCount = getEnvIntOrDefault("SIGNAL_WORKER_COUNT", cfg.SignalConfig.WorkerCount)

	// Auth config
	cfg.AuthConfig.APIToken = getEnvOrDefault("API_TOKEN", cfg.AuthConfig.APIToken)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := defaultConfig()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
