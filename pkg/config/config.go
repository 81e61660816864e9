package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// HorizonWeight pairs a prediction horizon (trading days ahead) with its blend
// weight in the composite prediction score.
type HorizonWeight struct {
	Days   int
	Weight float64
}

// Config holds all configuration for the application.
// Loaded once at startup and passed by reference; no package-level state.
type Config struct {
	Env string // development, staging, production

	// Paths
	DataDir   string // cached OHLCV panels, one CSV per instrument
	IndexDir  string // cached index panels
	ModelDir  string // one model artifact per horizon
	OutputDir string // daily reports

	// Prediction
	Horizons     []HorizonWeight
	TopN         int
	RiskLookback int // trailing sessions for the risk-adjusted score

	// Hyperparameter search
	SearchTrials  int
	SearchTimeout time.Duration
	Optimize      bool

	// Score fusion
	PredictionWeight   float64
	FundamentalWeight  float64
	RiskAdjustedWeight float64
	OverheatCap        float64 // max multiplicative deduction from the base score

	// Market data
	FetchInterval time.Duration
	QuoteBaseURL  string

	// Universe
	StockListURL   string
	MarketCapFloor int64 // yen

	// Database (optional; ranking/metrics persistence is skipped when empty)
	Database DatabaseConfig

	// API
	APIPort string

	// Scheduler (cron expressions with seconds field, JST)
	DailySchedule  string
	WeeklySchedule string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	horizons, err := parseHorizons(getEnv("KABU_HORIZONS", "1:0.30,5:0.30,20:0.25,60:0.15"))
	if err != nil {
		return nil, fmt.Errorf("parse KABU_HORIZONS: %w", err)
	}

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		DataDir:   getEnv("KABU_DATA_DIR", "data/stocks"),
		IndexDir:  getEnv("KABU_INDEX_DIR", "data/indices"),
		ModelDir:  getEnv("KABU_MODEL_DIR", "models"),
		OutputDir: getEnv("KABU_OUTPUT_DIR", "outputs/daily_reports"),

		Horizons:     horizons,
		TopN:         getEnvAsInt("KABU_TOP_N", 10),
		RiskLookback: getEnvAsInt("KABU_RISK_LOOKBACK", 60),

		SearchTrials:  getEnvAsInt("KABU_SEARCH_TRIALS", 50),
		SearchTimeout: getEnvAsDuration("KABU_SEARCH_TIMEOUT", "1h"),
		Optimize:      getEnvAsBool("KABU_OPTIMIZE", true),

		PredictionWeight:   getEnvAsFloat("KABU_WEIGHT_PREDICTION", 0.50),
		FundamentalWeight:  getEnvAsFloat("KABU_WEIGHT_FUNDAMENTAL", 0.25),
		RiskAdjustedWeight: getEnvAsFloat("KABU_WEIGHT_RISK", 0.25),
		OverheatCap:        getEnvAsFloat("KABU_OVERHEAT_CAP", 0.30),

		FetchInterval: getEnvAsDuration("KABU_FETCH_INTERVAL", "500ms"),
		QuoteBaseURL:  getEnv("KABU_QUOTE_BASE_URL", "https://stooq.com/q/d/l/"),

		StockListURL:   getEnv("KABU_STOCK_LIST_URL", "https://www.jpx.co.jp/markets/statistics-equities/misc/01.html"),
		MarketCapFloor: getEnvAsInt64("KABU_MARKET_CAP_FLOOR", 100_000_000_000),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		APIPort: getEnv("KABU_API_PORT", "8087"),

		DailySchedule:  getEnv("KABU_DAILY_SCHEDULE", "0 0 6 * * MON-FRI"),
		WeeklySchedule: getEnv("KABU_WEEKLY_SCHEDULE", "0 0 0 * * SUN"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks the loaded configuration for internal consistency.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if len(c.Horizons) == 0 {
		return fmt.Errorf("at least one prediction horizon is required")
	}
	var sum float64
	for _, h := range c.Horizons {
		if h.Days <= 0 {
			return fmt.Errorf("horizon days must be positive, got %d", h.Days)
		}
		if h.Weight < 0 {
			return fmt.Errorf("horizon weight must be non-negative, got %f", h.Weight)
		}
		sum += h.Weight
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("horizon weights must sum to 1.0, got %.4f", sum)
	}

	if c.TopN <= 0 {
		return fmt.Errorf("KABU_TOP_N must be positive")
	}
	if c.OverheatCap < 0 || c.OverheatCap > 1 {
		return fmt.Errorf("KABU_OVERHEAT_CAP must be in [0,1]")
	}

	return nil
}

// parseHorizons parses "1:0.30,5:0.30,20:0.25,60:0.15" into horizon/weight
// pairs sorted ascending by horizon.
func parseHorizons(s string) ([]HorizonWeight, error) {
	var horizons []HorizonWeight

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid horizon entry %q (want days:weight)", part)
		}
		days, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid horizon days %q: %w", kv[0], err)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid horizon weight %q: %w", kv[1], err)
		}
		horizons = append(horizons, HorizonWeight{Days: days, Weight: weight})
	}

	sort.Slice(horizons, func(i, j int) bool { return horizons[i].Days < horizons[j].Days })
	return horizons, nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
