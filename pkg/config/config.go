package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DateLayout is the ISO calendar date layout used for dates in config and output
const DateLayout = "2006-01-02"

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	// Database (optional, enables run persistence)
	Database DatabaseConfig

	// Source ingestion
	Source SourceConfig

	// Cleaning / weighting / trends
	Cleaning  CleaningConfig
	Weighting WeightingConfig
	Trend     TrendConfig

	// Output
	OutputDir    string
	CSVPrecision int

	// Scheduler
	RefreshSchedule string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// SourceConfig holds poll source fetching configuration
type SourceConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	RateLimit      float64 // requests per second, 0 = unlimited
}

// CleaningConfig holds data cleaner settings
type CleaningConfig struct {
	DateLayout string
}

// WeightingConfig holds weighting engine settings
type WeightingConfig struct {
	Variant string // standard, pollster-538-style
	File    string // optional YAML with factor tables
}

// TrendConfig holds trend engine defaults
type TrendConfig struct {
	NSigma    float64
	Frequency string
	Window    string
	StartDate *time.Time
	Workers   int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Source: SourceConfig{
			URL:            getEnv("POLL_SOURCE_URL", "https://cdn-dev.economistdatateam.com/jobs/pds/code-test/index.html"),
			ConnectTimeout: getEnvAsDuration("HTTP_CONNECT_TIMEOUT", "10s"),
			ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", "30s"),
			MaxRetries:     getEnvAsInt("HTTP_MAX_RETRIES", 3),
			RateLimit:      getEnvAsFloat("HTTP_RATE_LIMIT", 0),
		},

		Cleaning: CleaningConfig{
			DateLayout: getEnv("CLEAN_DATE_LAYOUT", "1/2/06"),
		},

		Weighting: WeightingConfig{
			Variant: getEnv("WEIGHTING_VARIANT", "standard"),
			File:    getEnv("WEIGHTING_FILE", ""),
		},

		Trend: TrendConfig{
			NSigma:    getEnvAsFloat("TREND_N_SIGMA", 2),
			Frequency: getEnv("TREND_FREQUENCY", "1D"),
			Window:    getEnv("TREND_WINDOW", "7D"),
			Workers:   getEnvAsInt("TREND_WORKERS", 1),
		},

		OutputDir:    getEnv("POLL_OUTPUT_DIR", "data"),
		CSVPrecision: getEnvAsInt("POLL_CSV_PRECISION", 4),

		// 6시간마다 (초 단위 cron)
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 */6 * * *"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if start := getEnv("TREND_START_DATE", ""); start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return nil, fmt.Errorf("config validation failed: TREND_START_DATE must be YYYY-MM-DD: %w", err)
		}
		cfg.Trend.StartDate = &t
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.CSVPrecision < 0 {
		return fmt.Errorf("POLL_CSV_PRECISION must be >= 0")
	}

	if c.Source.MaxRetries < 0 {
		return fmt.Errorf("HTTP_MAX_RETRIES must be >= 0")
	}

	if c.Trend.NSigma <= 0 {
		return fmt.Errorf("TREND_N_SIGMA must be > 0")
	}

	if c.Trend.Workers < 1 {
		return fmt.Errorf("TREND_WORKERS must be >= 1")
	}

	return nil
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
