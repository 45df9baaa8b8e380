package http

import (
	"net/http"
	"strconv"
	"time"

	"quotaguard/internal/handler/http/pathutil"
	"quotaguard/internal/handler/http/responsewriter"
	"quotaguard/internal/observability/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsMiddleware records HTTP request metrics including duration, size, and status codes.
// It uses path normalization to prevent label cardinality explosion from ID-containing paths.
// The middleware tracks:
// - In-flight requests (gauge incremented/decremented per request)
// - Request duration with optimized histogram buckets
// - Request and response sizes
// - Status code distribution
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Track in-flight requests
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		// Normalize path to prevent cardinality explosion
		// Example: /api/items/123 -> /api/items/:id
		normalizedPath := pathutil.NormalizePath(r.URL.Path)

		requestSize := 0
		if r.ContentLength > 0 {
			requestSize = int(r.ContentLength)
		}

		// Wrap response writer to capture status code and response size
		rw := responsewriter.Wrap(w)

		// Measure request duration
		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		status := strconv.Itoa(rw.Status())
		metrics.RecordHTTPRequest(r.Method, normalizedPath, status, duration, requestSize, rw.Size())
	})
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
// Extra gatherers (e.g. the rate limiter's dedicated registry) are merged with
// the default registry.
func MetricsHandler(extra ...prometheus.Gatherer) http.Handler {
	if len(extra) == 0 {
		return promhttp.Handler()
	}

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer}
	gatherers = append(gatherers, extra...)
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}
