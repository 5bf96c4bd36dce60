package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Scope     ScopeConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// LinkTimeout bounds how long POST /apps/:id/links waits for load or error
	LinkTimeout time.Duration `envconfig:"LINK_WAIT_TIMEOUT" default:"10s"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// FetchConfig controls resource retrieval.
type FetchConfig struct {
	Timeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	Concurrency int           `envconfig:"FETCH_CONCURRENCY" default:"8"`
	RateLimit   float64       `envconfig:"FETCH_RATE_LIMIT" default:"0"` // requests per second, 0 = unlimited
	UserAgent   string        `envconfig:"FETCH_USER_AGENT" default:"microhost/1.0"`
}

// ScopeConfig controls stylesheet scoping.
type ScopeConfig struct {
	Enabled bool   `envconfig:"SCOPE_CSS" default:"true"`
	Minify  bool   `envconfig:"MINIFY_CSS" default:"false"`
	Prefix  string `envconfig:"SCOPE_PREFIX" default:"micro-app"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-client limits of the control API.
type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Fetch.Concurrency <= 0 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", cfg.Fetch.Concurrency)
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
			Port:        "8000",
			Host:        "0.0.0.0",
			LinkTimeout: 10 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			Concurrency: 8,
			RateLimit:   0,
			UserAgent:   "microhost/1.0",
		},
		Scope: ScopeConfig{
			Enabled: true,
			Minify:  false,
			Prefix:  "micro-app",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			Burst:             200,
		},
	}
}
