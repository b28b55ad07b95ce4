package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config holds all server configuration loaded from environment variables.
type Config struct {
	DBPath   string `envconfig:"ADCASH_DB_PATH" default:"./data/adcash.sqlite"`
	Port     int    `envconfig:"ADCASH_PORT" default:"8080"`
	LogLevel string `envconfig:"ADCASH_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"ADCASH_LOG_DIR" default:"./logs"`
	Timezone string `envconfig:"ADCASH_TIMEZONE" default:"UTC"`

	JWTSecret  string `envconfig:"ADCASH_JWT_SECRET" required:"true"`
	PaymentKey string `envconfig:"ADCASH_PAYMENT_KEY" required:"true"`

	AdminUserIDs    []string `envconfig:"ADCASH_ADMIN_USER_IDS"`
	AdminAllowedIPs []string `envconfig:"ADCASH_ADMIN_ALLOWED_IPS"`
	CORSOrigins     []string `envconfig:"ADCASH_CORS_ORIGINS" default:"http://localhost:5173"`

	WatchPerMinute        int `envconfig:"ADCASH_WATCH_PER_MINUTE" default:"6"`
	WatchPerDay           int `envconfig:"ADCASH_WATCH_PER_DAY" default:"500"`
	WithdrawalsPerDay     int `envconfig:"ADCASH_WITHDRAWALS_PER_DAY" default:"3"`
	WatchTimeGraceSeconds int `envconfig:"ADCASH_WATCH_TIME_GRACE_SECONDS" default:"5"`

	EdgeRPS   float64 `envconfig:"ADCASH_EDGE_RPS" default:"5"`
	EdgeBurst int     `envconfig:"ADCASH_EDGE_BURST" default:"10"`
	RedisURL  string  `envconfig:"ADCASH_REDIS_URL"`

	MaintenanceSchedule string `envconfig:"ADCASH_MAINTENANCE_SCHEDULE" default:"@hourly"`
	DriftCheckSchedule  string `envconfig:"ADCASH_DRIFT_CHECK_SCHEDULE" default:"0 3 * * *"`
}

// Load reads configuration from .env file (if present) then from environment variables.
func Load() (*Config, error) {
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid config: port must be 1-65535, got %d", c.Port)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: ADCASH_TIMEZONE %q: %w", c.Timezone, err)
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("invalid config: ADCASH_JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	key, err := hex.DecodeString(c.PaymentKey)
	if err != nil || len(key) != PaymentKeyBytes {
		return fmt.Errorf("invalid config: ADCASH_PAYMENT_KEY must be %d hex-encoded bytes", PaymentKeyBytes)
	}
	if c.WatchPerMinute < 1 {
		return fmt.Errorf("invalid config: ADCASH_WATCH_PER_MINUTE must be >= 1, got %d", c.WatchPerMinute)
	}
	if c.WatchPerDay < c.WatchPerMinute {
		return fmt.Errorf("invalid config: ADCASH_WATCH_PER_DAY (%d) must be >= ADCASH_WATCH_PER_MINUTE (%d)", c.WatchPerDay, c.WatchPerMinute)
	}
	if c.WithdrawalsPerDay < 1 {
		return fmt.Errorf("invalid config: ADCASH_WITHDRAWALS_PER_DAY must be >= 1, got %d", c.WithdrawalsPerDay)
	}
	if c.WatchTimeGraceSeconds < 0 || c.WatchTimeGraceSeconds > MaxWatchTimeGraceSeconds {
		return fmt.Errorf("invalid config: ADCASH_WATCH_TIME_GRACE_SECONDS must be 0-%d, got %d", MaxWatchTimeGraceSeconds, c.WatchTimeGraceSeconds)
	}
	if c.EdgeRPS <= 0 || c.EdgeBurst < 1 {
		return fmt.Errorf("invalid config: ADCASH_EDGE_RPS must be > 0 and ADCASH_EDGE_BURST >= 1")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"ADCASH_MAINTENANCE_SCHEDULE":  c.MaintenanceSchedule,
		"ADCASH_DRIFT_CHECK_SCHEDULE": c.DriftCheckSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid config: %s %q: %w", name, spec, err)
		}
	}
	return nil
}

// Location returns the platform calendar used for "today" and streak dates.
// Validate has already checked the name, so a failure here falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
