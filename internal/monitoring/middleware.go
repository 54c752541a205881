package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Get response data
		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())

		// Record metrics
		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
	}
}

// Timer measures a fetch or render phase and records it on Stop.
type Timer struct {
	start   time.Time
	metrics *Metrics
	outcome func(status string, d time.Duration)
}

// NewFetchTimer creates a timer that records fetch attempt outcomes.
func NewFetchTimer(metrics *Metrics) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		outcome: func(status string, _ time.Duration) { metrics.RecordFetchAttempt(status) },
	}
}

// Stop stops the timer and records the outcome.
func (t *Timer) Stop(status string) {
	t.outcome(status, time.Since(t.start))
}
