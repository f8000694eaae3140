package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const envDev = "dev"

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	SessionSecret string `env:"SESSION_SECRET"`
	DBPath        string `env:"DB_PATH" envDefault:"./dev.db"`
	Port          string `env:"PORT" envDefault:"8080"`
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`

	LoggerLevel  string `env:"LOGGER_LEVEL" envDefault:"info"`
	LoggerAsJSON bool   `env:"LOGGER_AS_JSON" envDefault:"false"`

	Currency       string        `env:"CURRENCY" envDefault:"HNL"`
	QuoteValidDays int           `env:"QUOTE_VALID_DAYS" envDefault:"15"`
	RecipeCacheTTL time.Duration `env:"RECIPE_CACHE_TTL" envDefault:"30s"`

	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	QuoteExpiryInterval time.Duration `env:"QUOTE_EXPIRY_INTERVAL" envDefault:"1h"`
}

// Load reads the optional .env file and the process environment and returns a populated Config.
func Load() (Config, error) {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.QuoteValidDays <= 0 {
		return Config{}, fmt.Errorf("QUOTE_VALID_DAYS must be > 0, got %d", cfg.QuoteValidDays)
	}

	return cfg, nil
}

// IsDev reports whether migrations and seed data should be applied on startup.
func (c Config) IsDev() bool {
	return c.AppEnv == envDev
}

// Warnings lists settings that are missing but not fatal.
func (c Config) Warnings() []string {
	var out []string
	if c.AdminEmail == "" {
		out = append(out, "ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		out = append(out, "ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	return out
}
