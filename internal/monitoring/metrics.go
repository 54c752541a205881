package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the render service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Render pipeline metrics
	RendersTotal   *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec
	PendingRenders prometheus.Gauge
	VMContextSize  prometheus.Histogram

	// Package cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSize      prometheus.Gauge

	// Fetcher metrics
	FetchAttempts *prometheus.CounterVec
	FetchRetries  prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	mu sync.RWMutex
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics returns the process-wide metrics collector. Its collectors
// live on the global Prometheus registry, so they are created and
// registered on the first call only; later calls return the same value.
func NewMetrics() *Metrics {
	defaultOnce.Do(func() { defaultMetrics = newMetrics() })
	return defaultMetrics
}

func newMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "render_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "render_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "render_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 5000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "render_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		RendersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "render_requests_total",
				Help: "Total number of /render requests by outcome",
			},
			[]string{"outcome"}, // success, input_error, fetch_error, render_error, timeout
		),
		RenderDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "render_duration_seconds",
				Help:    "End-to-end render duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"outcome"},
		),
		PendingRenders: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "render_pending_requests",
				Help: "Number of render requests currently in flight",
			},
		),
		VMContextSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "render_vm_context_size_bytes",
				Help:    "Approximate vm context size (sum(len(content))*2) per render",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "render_cache_hits_total",
				Help: "Total number of package cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "render_cache_misses_total",
				Help: "Total number of package cache misses requiring a fetch",
			},
		),
		CacheEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "render_cache_evictions_total",
				Help: "Total number of package cache entries evicted",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "render_cache_size_bytes",
				Help: "Current sum of cached package sizes in bytes",
			},
		),

		FetchAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "render_fetch_attempts_total",
				Help: "Total number of upstream package fetch attempts by result",
			},
			[]string{"result"}, // success, error
		),
		FetchRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "render_fetch_retries_total",
				Help: "Total number of retried fetch attempts",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "render_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordRender records the outcome and duration of a render request.
func (m *Metrics) RecordRender(outcome string, duration time.Duration) {
	m.RendersTotal.WithLabelValues(outcome).Inc()
	m.RenderDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetPendingRenders mirrors the orchestrator's pendingRenderRequests counter.
func (m *Metrics) SetPendingRenders(n int) {
	m.PendingRenders.Set(float64(n))
}

// ObserveVMContextSize records the approximate vm context size for a render.
func (m *Metrics) ObserveVMContextSize(bytes int) {
	m.VMContextSize.Observe(float64(bytes))
}

// RecordCacheHit records a package cache hit.
func (m *Metrics) RecordCacheHit() { m.CacheHits.Inc() }

// RecordCacheMiss records a package cache miss.
func (m *Metrics) RecordCacheMiss() { m.CacheMisses.Inc() }

// RecordCacheEviction records a package cache eviction.
func (m *Metrics) RecordCacheEviction() { m.CacheEvictions.Inc() }

// SetCacheSize sets the current cache size gauge in bytes.
func (m *Metrics) SetCacheSize(bytes int64) { m.CacheSize.Set(float64(bytes)) }

// RecordFetchAttempt records a single fetch attempt outcome.
func (m *Metrics) RecordFetchAttempt(result string) {
	m.FetchAttempts.WithLabelValues(result).Inc()
}

// RecordFetchRetry records a retried fetch attempt.
func (m *Metrics) RecordFetchRetry() { m.FetchRetries.Inc() }
