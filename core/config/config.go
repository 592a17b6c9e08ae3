// Package config loads the bot configuration from a YAML file with an
// environment variable overlay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coredatabase "github.com/escapismart/shopbot/core/database"
	"github.com/escapismart/shopbot/core/logger"
)

// TelegramConfig holds bot transport settings.
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

// RateLimitConfig holds settings for per-user inbound rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// DispatcherConfig bounds the event-processing worker pool.
type DispatcherConfig struct {
	Workers   int `yaml:"workers" envconfig:"DISPATCH_WORKERS"`
	QueueSize int `yaml:"queue_size" envconfig:"DISPATCH_QUEUE_SIZE"`
	// OpTimeoutMS bounds each persistence call; timeouts surface as retryable failures.
	OpTimeoutMS int `yaml:"op_timeout_ms" envconfig:"DISPATCH_OP_TIMEOUT_MS"`
}

// QuotesConfig configures the market-quote collaborator.
type QuotesConfig struct {
	BaseURL   string `yaml:"base_url" envconfig:"QUOTES_BASE_URL"`
	TimeoutMS int    `yaml:"timeout_ms" envconfig:"QUOTES_TIMEOUT_MS"`
}

// DigestConfig configures the scheduled admin digest.
type DigestConfig struct {
	// Schedule is a cron expression; empty disables the digest.
	Schedule string `yaml:"schedule" envconfig:"DIGEST_SCHEDULE"`
}

const (
	// RunModeWebhook selects webhook mode for updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for updates.
	RunModeLongpoll = "longpoll"
)

// Config aggregates the full application configuration.
type Config struct {
	Telegram   TelegramConfig      `yaml:"telegram"`
	Webhook    WebhookConfig       `yaml:"webhook"`
	Logging    logger.Config       `yaml:"logging"`
	RateLimit  RateLimitConfig     `yaml:"rate_limit"`
	Database   coredatabase.Config `yaml:"database"`
	Dispatcher DispatcherConfig    `yaml:"dispatcher"`
	Quotes     QuotesConfig        `yaml:"quotes"`
	Digest     DigestConfig        `yaml:"digest"`
}

// OpTimeout returns the per-persistence-call timeout with a sane default.
func (c DispatcherConfig) OpTimeout() time.Duration {
	if c.OpTimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.OpTimeoutMS) * time.Millisecond
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

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" { // accept alias
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

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if cfg.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher.workers must be >= 0")
	}
	if cfg.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("dispatcher.queue_size must be >= 0")
	}
	return nil
}
