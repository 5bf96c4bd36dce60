package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.LinkTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	// Fetch config
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Zero(t, cfg.Fetch.RateLimit)
	assert.Equal(t, "microhost/1.0", cfg.Fetch.UserAgent)

	// Scope config
	assert.True(t, cfg.Scope.Enabled)
	assert.False(t, cfg.Scope.Minify)
	assert.Equal(t, "micro-app", cfg.Scope.Prefix)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":              "9000",
		"HOST":              "127.0.0.1",
		"FETCH_TIMEOUT":     "5s",
		"FETCH_CONCURRENCY": "2",
		"FETCH_RATE_LIMIT":  "12.5",
		"FETCH_USER_AGENT":  "test-agent",
		"SCOPE_CSS":         "false",
		"MINIFY_CSS":        "true",
		"SCOPE_PREFIX":      "sub-app",
		"LOG_LEVEL":         "debug",
		"LOG_DEV":           "true",
		"CORS_ORIGINS":      "https://a.example,https://b.example",
		"RATE_LIMIT_RPS":    "5",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2, cfg.Fetch.Concurrency)
	assert.Equal(t, 12.5, cfg.Fetch.RateLimit)
	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)

	assert.False(t, cfg.Scope.Enabled)
	assert.True(t, cfg.Scope.Minify)
	assert.Equal(t, "sub-app", cfg.Scope.Prefix)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero concurrency", key: "FETCH_CONCURRENCY", value: "0"},
		{name: "malformed timeout", key: "FETCH_TIMEOUT", value: "soon"},
		{name: "malformed bool", key: "SCOPE_CSS", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}
