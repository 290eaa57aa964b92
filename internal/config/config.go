// Package config loads runtime settings from .env files and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	PostgresDSN string
	RedisAddr   string

	Timezone       *time.Location `validate:"required"`
	Precision      int            `validate:"min=0,max=6"`
	CacheTTL       time.Duration  `validate:"min=0"`
	DayChartWindow int            `validate:"min=1,max=366"`

	CSVDelimiter rune
	CSVBOM       bool
	ExportDir    string `validate:"required"`

	WorkerID     string
	PollInterval time.Duration `validate:"min=1000000"`

	FromName       string
	FromAddress    string `validate:"omitempty,email"`
	SendGridAPIKey string

	MetricsInterval time.Duration `validate:"min=1000000000"`
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables")
	}

	loc, err := time.LoadLocation(getEnv("REPORT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}

	delimiter, err := getEnvRune("CSV_DELIMITER", ',')
	if err != nil {
		return nil, err
	}

	precision, err := getEnvInt("REPORT_PRECISION", 1)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvInt("REPORT_CACHE_TTL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	window, err := getEnvInt("DAY_CHART_WINDOW", 14)
	if err != nil {
		return nil, err
	}
	pollMs, err := getEnvInt("WORKER_POLL_INTERVAL_MS", 1000)
	if err != nil {
		return nil, err
	}
	metricsSecs, err := getEnvInt("METRICS_INTERVAL_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		Timezone:        loc,
		Precision:       precision,
		CacheTTL:        time.Duration(cacheTTL) * time.Second,
		DayChartWindow:  window,
		CSVDelimiter:    delimiter,
		CSVBOM:          getEnvBool("CSV_BOM", false),
		ExportDir:       getEnv("EXPORT_DIR", "./reports"),
		WorkerID:        getEnv("WORKER_ID", ""),
		PollInterval:    time.Duration(pollMs) * time.Millisecond,
		FromName:        getEnv("FROM_NAME", "Field Ops Reports"),
		FromAddress:     getEnv("FROM_ADDRESS", ""),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		MetricsInterval: time.Duration(metricsSecs) * time.Second,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// RequirePostgres fails when no database is configured.
func (c *Config) RequirePostgres() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	return nil
}

// MailEnabled reports whether exports can be e-mailed.
func (c *Config) MailEnabled() bool {
	return c.SendGridAPIKey != "" && c.FromAddress != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvRune(key string, fallback rune) (rune, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	if value == `\t` {
		return '\t', nil
	}

	r, size := utf8.DecodeRuneInString(value)
	if size != len(value) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("%s: must be a single character other than quote or newline, got %q", key, value)
	}
	return r, nil
}
