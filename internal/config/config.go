package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Secret    SecretConfig
	Fetcher   FetcherConfig
	Render    RenderConfig
	Apollo    ApolloConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Dev  bool   `envconfig:"DEV" default:"false"`
}

// SecretConfig holds shared-secret authentication configuration.
type SecretConfig struct {
	FilePath string `envconfig:"SECRET_FILE" default:""`
}

// FetcherConfig holds package fetcher configuration. MaxRetries counts
// retries after the initial attempt (resty's own convention), so the
// default of 2 yields 3 total attempts per URL, matching the fetch
// retry schedule.
type FetcherConfig struct {
	Timeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`
	MaxRetries int           `envconfig:"FETCH_MAX_RETRIES" default:"2"`
	RetryWait  time.Duration `envconfig:"FETCH_RETRY_WAIT" default:"200ms"`
}

// RenderConfig holds render orchestration configuration.
type RenderConfig struct {
	Timeout       time.Duration `envconfig:"RENDER_TIMEOUT" default:"30s"`
	MaxConcurrent int           `envconfig:"RENDER_MAX_CONCURRENT" default:"16"`
	MaxBodyBytes  int64         `envconfig:"RENDER_MAX_BODY_BYTES" default:"5242880"`
}

// ApolloConfig holds default Apollo network shim configuration.
type ApolloConfig struct {
	Timeout time.Duration `envconfig:"APOLLO_TIMEOUT" default:"1000ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
			Dev:  false,
		},
		Secret: SecretConfig{
			FilePath: "",
		},
		Fetcher: FetcherConfig{
			Timeout:    60 * time.Second,
			MaxRetries: 2,
			RetryWait:  200 * time.Millisecond,
		},
		Render: RenderConfig{
			Timeout:       30 * time.Second,
			MaxConcurrent: 16,
			MaxBodyBytes:  5 * 1024 * 1024,
		},
		Apollo: ApolloConfig{
			Timeout: 1000 * time.Millisecond,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}

// Version returns the deployed version, read from GAE_VERSION, falling
// back to "dev" when unset (local/dev runs).
func Version() string {
	if v := os.Getenv("GAE_VERSION"); v != "" {
		return v
	}
	return "dev"
}

// InstanceID returns the instance identifier, read from GAE_INSTANCE.
func InstanceID() string {
	return os.Getenv("GAE_INSTANCE")
}
