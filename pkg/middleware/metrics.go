package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wms-platform/batching-service/pkg/metrics"
)

// MetricsMiddleware records request counts, durations and in-flight gauge
// for every route. The metrics endpoint itself is skipped.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method

		// Use the route pattern so path labels stay low-cardinality.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		m.RecordHTTPRequest(method, path, status, duration)
	}
}

// MetricsEndpoint serves the Prometheus scrape endpoint.
func MetricsEndpoint(m *metrics.Metrics) gin.HandlerFunc {
	handler := m.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// BusinessMetrics records batching domain events from the HTTP handlers.
type BusinessMetrics struct {
	metrics *metrics.Metrics
}

// NewBusinessMetrics creates a new BusinessMetrics helper
func NewBusinessMetrics(m *metrics.Metrics) *BusinessMetrics {
	return &BusinessMetrics{metrics: m}
}

// RecordBatchCreated records a batch creation event
func (b *BusinessMetrics) RecordBatchCreated(pickingType string) {
	b.metrics.RecordBatchCreated(pickingType)
}

// RecordBatchCompleted records a batch completion event
func (b *BusinessMetrics) RecordBatchCompleted(status string) {
	b.metrics.RecordBatchCompleted(status)
}

// RecordTaskPlanned records a planned pick task
func (b *BusinessMetrics) RecordTaskPlanned(scanPolicy string) {
	b.metrics.RecordTaskPlanned(scanPolicy)
}

// RecordUnpickableReported records an unpickable item report
func (b *BusinessMetrics) RecordUnpickableReported(partial bool) {
	b.metrics.RecordUnpickableReported(partial)
}

// RecordDropOffCompleted records a drop-off
func (b *BusinessMetrics) RecordDropOffCompleted(continued bool) {
	b.metrics.RecordDropOffCompleted(continued)
}
