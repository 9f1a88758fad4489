// Package config defines the process configuration, resolved once at startup
// and immutable afterwards. Values come from the environment with a dotenv
// file as fallback, are bound through envconfig struct tags and validated
// fail-fast; a bad configuration stops the process before any store is
// scheduled.
package config

import (
	"log/slog"
	"time"

	"sellerpilot/internal/types"
)

// Config is the top-level process configuration. Sub-components receive only
// the subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Ozon      OzonConfig
	Scheduler SchedulerConfig
	Store     StoreFileConfig
	Auth      AuthConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// OzonConfig holds the Seller API connection defaults shared by all stores.
// Credentials are per store and live in the store config file, not here.
type OzonConfig struct {
	BaseURL            string        `envconfig:"OZON_API_BASE_URL" default:"https://api-seller.ozon.ru" validate:"required,url"`
	Timeout            time.Duration `envconfig:"OZON_API_TIMEOUT" default:"30s"`
	RateLimitPerSecond int           `envconfig:"OZON_API_RATE_LIMIT" default:"50" validate:"min=1"`
	MockMode           bool          `envconfig:"OZON_MOCK_MODE" default:"false"`
}

// SchedulerConfig holds the trigger timezone.
type SchedulerConfig struct {
	Timezone string `envconfig:"SCHEDULER_TIMEZONE" default:"Europe/Moscow" validate:"required"`
}

// StoreFileConfig holds the store-configuration file settings.
type StoreFileConfig struct {
	ConfigPath    string `envconfig:"STORE_CONFIG_PATH" default:"./data/config.json" validate:"required"`
	SnapshotsKeep int    `envconfig:"STORE_SNAPSHOTS_KEEP" default:"5" validate:"min=0"`
}

// AuthConfig holds the authentication settings. TelegramBotToken enables the
// Telegram login flow; AdminToken, when set, grants access with a static
// bearer token.
type AuthConfig struct {
	TelegramBotToken types.SecretString `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminToken       types.SecretString `envconfig:"ADMIN_TOKEN"`
	SessionTTL       time.Duration      `envconfig:"SESSION_TTL" default:"24h"`
}

// SlogLevel maps the configured log level onto slog's scale.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
