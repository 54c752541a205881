// Package middleware provides the HTTP middleware chain in front of the
// render routes.
//
// Middleware stack includes:
//   - RequestID: stamps every request with a correlation UUID
//   - CORS: Cross-origin resource sharing with configurable origins
//   - BodyLimit: request-body size cap ahead of JSON decoding
//   - RateLimit: Per-IP token bucket rate limiting
//   - Secret: shared-secret check guarding /render and /flush
//   - Recovery: gin.Recovery, installed by internal/server; this package
//     defines no recovery or request-logging middleware of its own
//
// CORS Configuration:
//   - AllowOrigins: Permitted origin domains
//   - AllowMethods: HTTP methods (GET, POST, etc.)
//   - AllowHeaders: Request headers
//   - AllowCredentials: Cookie/auth support
//   - MaxAge: Preflight cache duration
//
// Rate Limiting:
//   - Per-IP tracking with automatic cleanup
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultRenderCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRenderRateLimitConfig()))
package middleware
