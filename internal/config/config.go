package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/obadahasan/numbot/internal/database"
	"github.com/obadahasan/numbot/internal/logger"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// RateLimitConfig holds settings for per-user rate limiting.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Oracle modes selecting the verification-code lookup implementation.
const (
	OracleModeSimulated = "simulated"
	OracleModeHTTP      = "http"
)

// ReservationConfig tunes the number-reservation core.
type ReservationConfig struct {
	// LeaseMinutes is the fallback lease duration when the settings store
	// has no value.
	LeaseMinutes int `yaml:"lease_minutes" envconfig:"RESERVATION_LEASE_MINUTES"`
	// SweepIntervalSeconds enables the background expiry sweep; 0 disables it.
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds" envconfig:"RESERVATION_SWEEP_INTERVAL_SECONDS"`
	OracleMode           string  `yaml:"oracle_mode" envconfig:"ORACLE_MODE"`
	OracleURL            string  `yaml:"oracle_url" envconfig:"ORACLE_URL"`
	OracleProbability    float64 `yaml:"oracle_probability" envconfig:"ORACLE_PROBABILITY"`
}

// SweepInterval returns the sweep period as a duration; zero means disabled.
func (r ReservationConfig) SweepInterval() time.Duration {
	if r.SweepIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Logging     logger.Config     `yaml:"logging"`
	Database    database.Config   `yaml:"database"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Reservation ReservationConfig `yaml:"reservation"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Reservation.LeaseMinutes <= 0 {
		cfg.Reservation.LeaseMinutes = 5
	}
	om := strings.ToLower(strings.TrimSpace(cfg.Reservation.OracleMode))
	if om == "" {
		om = OracleModeSimulated
	}
	switch om {
	case OracleModeSimulated:
		if cfg.Reservation.OracleProbability < 0 || cfg.Reservation.OracleProbability > 1 {
			return fmt.Errorf("reservation.oracle_probability must be within [0,1]")
		}
		if cfg.Reservation.OracleProbability == 0 {
			cfg.Reservation.OracleProbability = 0.3
		}
	case OracleModeHTTP:
		if strings.TrimSpace(cfg.Reservation.OracleURL) == "" {
			return fmt.Errorf("reservation.oracle_url is required when oracle_mode is 'http'")
		}
	default:
		return fmt.Errorf("invalid reservation.oracle_mode %q; allowed: simulated, http", cfg.Reservation.OracleMode)
	}
	cfg.Reservation.OracleMode = om

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}

	return nil
}
