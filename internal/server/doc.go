// Package server wires the render service's components together and
// owns the HTTP server's lifecycle.
//
// This package orchestrates:
//   - HTTP routing with Gin
//   - Middleware stack (recovery, CORS, body-size limit, rate limiting,
//     metrics, shared-secret auth)
//   - The package fetcher, cache, and Render Orchestrator
//   - Prometheus metrics registration
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize the logger and metrics collector
//  3. Build the fetcher, cache, and orchestrator
//  4. Set up HTTP routes and middleware
//  5. Start the HTTP server
//  6. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
