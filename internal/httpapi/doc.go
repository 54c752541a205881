// Package httpapi provides the HTTP handlers for the render service's
// external surface.
//
// Endpoints:
//   - Render: POST /render
//   - Flush: POST /flush
//   - Lifecycle: GET /_api/ping, /_api/version, /_ah/health, /_ah/start, /_ah/stop
//
// Error response formatting follows the stable schema
// {error, value?, stack?}; success bodies for /render are the render
// envelope (html, css, and the request's stats merged in), while the
// lifecycle and /flush endpoints reply with the plain-text bodies the
// external contract fixes byte-for-byte.
//
// Example usage:
//
//	handlers := httpapi.NewHandlers(orchestrator, cache)
//	router.POST("/render", handlers.Render)
//	router.POST("/flush", handlers.Flush)
package httpapi
