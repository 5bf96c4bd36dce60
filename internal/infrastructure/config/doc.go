// Package config provides 12-factor configuration management for the micro-app host.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override individual values.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Fetch: resource retrieval (timeout, fan-out bound, rate limit, user agent)
//   - Scope: stylesheet scoping and minification
//   - Logging: log level and output format
//   - RateLimit: per-client limits of the control API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Host listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, LINK_WAIT_TIMEOUT, CORS_ORIGINS
//   - FETCH_TIMEOUT, FETCH_CONCURRENCY, FETCH_RATE_LIMIT, FETCH_USER_AGENT
//   - SCOPE_CSS, MINIFY_CSS, SCOPE_PREFIX
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_ENABLED, RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
