// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds.
	// Buckets are tuned for API response times so p95 and p99 stay accurate:
	// fast responses (5-25ms), normal (50-250ms), slow (500ms-10s).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks the number of HTTP requests currently being served
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

// Enforcement metrics track rate limit and quota outcomes
var (
	// ViolationsRecordedTotal counts violations written to the violation log
	ViolationsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "violations_recorded_total",
			Help: "Total number of limit violations recorded",
		},
		[]string{"type"}, // type: ip_rate, user_rate, quota
	)

	// QuotaChecksTotal counts quota checks by outcome
	QuotaChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_checks_total",
			Help: "Total number of monthly quota checks",
		},
		[]string{"result"}, // result: allowed, denied, unlimited, fail_open
	)

	// QuotaCheckDuration measures time spent on a quota check including the
	// conditional increment
	QuotaCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quota_check_duration_seconds",
			Help:    "Time taken to check and reserve monthly quota",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
	)
)

// Sweep metrics track the retention sweeper
var (
	// SweepDeletedTotal counts rows removed by the retention sweeper
	SweepDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_deleted_rows_total",
			Help: "Total number of rows deleted by the retention sweeper",
		},
		[]string{"table"}, // table: counting_windows, violations
	)

	// SweepDuration measures the duration of a full sweep run
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Time taken for one retention sweep run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// SweepErrorsTotal counts failed sweep runs
	SweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_errors_total",
			Help: "Total number of failed retention sweep runs",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}
