/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the render
service, tracking HTTP requests, render outcomes, package cache behavior,
and fetcher retries. None of it gates request handling — it is purely
observational, per the render pipeline's own stats (see internal/stats).

# Features

- HTTP request metrics (latency, throughput, size)
- Render outcome metrics (success/input_error/fetch_error/render_error/timeout)
- Package cache hit/miss/eviction counters
- Fetcher attempt and retry counters
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.RecordRender("success", elapsed)
	metrics.RecordCacheHit()

	// Time operations
	timer := monitoring.NewFetchTimer(metrics)
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
