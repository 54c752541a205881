// Package main is the entry point for the render service.
//
// It loads configuration, builds the HTTP server (internal/server), and
// runs it until an OS signal requests a graceful shutdown.
//
// Configuration:
//   - Environment variables (12-factor, see internal/config)
//   - CLI flags override a subset for local development
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (skips secret check, console logs)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
