// Package config provides 12-factor configuration management for the
// render server.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags (see cmd/server) can override a subset for local development.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, dev mode)
//   - Secret: path to the shared-secret file used to authenticate /render and /flush
//   - Fetcher: upstream package fetch timeout and retry schedule
//   - Render: overall render timeout, concurrency cap, body size limit
//   - Apollo: default GraphQL shim request timeout
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, DEV, SECRET_FILE
//   - FETCH_TIMEOUT, FETCH_MAX_RETRIES, FETCH_RETRY_WAIT
//   - RENDER_TIMEOUT, RENDER_MAX_CONCURRENT, RENDER_MAX_BODY_BYTES
//   - APOLLO_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - GAE_VERSION, GAE_INSTANCE (surfaced via config.Version/config.InstanceID)
package config
