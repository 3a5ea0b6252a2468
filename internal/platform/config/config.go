package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	RedisURL  string `env:"REDIS_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	BusChannel    string `env:"BUS_CHANNEL" default:"selection:timeline"`
	DirectoryFile string `env:"DIRECTORY_FILE" default:"groups.yaml"`

	AppID           int `env:"APP_ID" default:"0"`
	AppsPerScreen   int `env:"APPS_PER_SCREEN" default:"1"`
	NumberOfScreens int `env:"NUMBER_OF_SCREENS" default:"1"`

	HighlightDurationTicks   int           `env:"HIGHLIGHT_DURATION_TICKS" default:"25"`
	TickInterval             time.Duration `env:"TICK_INTERVAL" default:"100ms"`
	HighlightDecayResolution time.Duration `env:"HIGHLIGHT_DECAY_RESOLUTION" default:"1s"`
	ReconcileInterval        time.Duration `env:"RECONCILE_INTERVAL" default:"30s"` // 0 disables

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"20"` // requests per second per client, 0 disables
	APIRateBurst int     `env:"API_RATE_BURST" default:"40"`
}

// TotalApps is the number of display slots on the wall.
func (c *Config) TotalApps() int {
	return c.AppsPerScreen * c.NumberOfScreens
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.AppsPerScreen <= 0 || cfg.NumberOfScreens <= 0 {
		return errors.New("APPS_PER_SCREEN and NUMBER_OF_SCREENS must be positive")
	}
	if cfg.AppID < 0 || cfg.AppID >= cfg.TotalApps() {
		return fmt.Errorf("APP_ID must be between 0 and %d, got %d", cfg.TotalApps()-1, cfg.AppID)
	}
	if cfg.HighlightDurationTicks <= 0 {
		return errors.New("HIGHLIGHT_DURATION_TICKS must be positive")
	}
	if cfg.TickInterval <= 0 || cfg.HighlightDecayResolution <= 0 {
		return errors.New("TICK_INTERVAL and HIGHLIGHT_DECAY_RESOLUTION must be positive")
	}
	if cfg.ReconcileInterval < 0 {
		return errors.New("RECONCILE_INTERVAL must not be negative")
	}
	if cfg.APIRateLimit < 0 || (cfg.APIRateLimit > 0 && cfg.APIRateBurst <= 0) {
		return errors.New("API_RATE_LIMIT must not be negative and API_RATE_BURST must be positive when limiting")
	}
	if cfg.BusChannel == "" {
		return errors.New("BUS_CHANNEL is required")
	}
	if cfg.IsProduction() && cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required in production")
	}
	return nil
}
