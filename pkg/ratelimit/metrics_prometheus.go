package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the RateLimitMetrics interface using Prometheus.
//
// This implementation provides observability for rate limiting operations with
// detailed metrics including:
// - Request counters (allowed/denied) by limiter type and path
// - Fail-open counters for store outages
// - Rate limit check duration histograms
// - Active key gauges for memory monitoring
// - Circuit breaker state tracking
//
// All metrics use a custom registry for better testability and isolation.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// requestsTotal tracks total rate limit requests by limiter type, status, and path.
	// Labels:
	//   - limiter_type: "ip" or "user"
	//   - status: "allowed" or "denied"
	//   - path: Request path (for per-endpoint metrics)
	requestsTotal *prometheus.CounterVec

	// failOpenTotal tracks requests admitted because the store was
	// unavailable. A non-zero rate here means enforcement is degraded.
	// Labels:
	//   - limiter_type: "ip" or "user"
	failOpenTotal *prometheus.CounterVec

	// checkDuration tracks the duration of rate limit check operations.
	// Labels:
	//   - limiter_type: "ip" or "user"
	//
	// Buckets are optimized for fast rate limit checks (<5ms target):
	// - 0.5ms, 1ms, 2ms, 5ms (fast checks)
	// - 10ms, 25ms, 50ms (slower checks, potential issues)
	// - 100ms, 250ms, 500ms, 1s (circuit breaker should trigger)
	checkDuration *prometheus.HistogramVec

	// activeKeys tracks the current number of active keys in the store.
	// Labels:
	//   - limiter_type: "ip" or "user"
	activeKeys *prometheus.GaugeVec

	// circuitState tracks the store circuit breaker state.
	// Labels:
	//   - limiter_type: "ip" or "user"
	//
	// Values:
	//   - 0: Closed (normal operation)
	//   - 1: Open (store failing, requests admitted fail-open)
	//   - 2: Half-Open (testing recovery)
	circuitState *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom registry.
//
// Using a custom registry (instead of the global prometheus.DefaultRegisterer) provides:
// - Better testability (isolated metrics per test)
// - No metric conflicts when running multiple instances
// - Explicit metric lifecycle management
//
// The registry can be passed to promhttp.HandlerFor() to expose metrics.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limit_requests_total",
			Help: "Total rate limit requests by limiter type, status, and path",
		},
		[]string{"limiter_type", "status", "path"},
	)

	failOpenTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limit_fail_open_total",
			Help: "Requests admitted without a limit check because the store was unavailable",
		},
		[]string{"limiter_type"},
	)

	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_rate_limit_check_duration_seconds",
			Help:    "Duration of rate limit check operations",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"limiter_type"},
	)

	activeKeys := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_rate_limit_active_keys",
			Help: "Current number of active keys by limiter type",
		},
		[]string{"limiter_type"},
	)

	circuitState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_rate_limit_circuit_state",
			Help: "Store circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"limiter_type"},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		requestsTotal,
		failOpenTotal,
		checkDuration,
		activeKeys,
		circuitState,
	)

	return &PrometheusMetrics{
		registry:      registry,
		requestsTotal: requestsTotal,
		failOpenTotal: failOpenTotal,
		checkDuration: checkDuration,
		activeKeys:    activeKeys,
		circuitState:  circuitState,
	}
}

// Registry returns the Prometheus registry containing all rate limit metrics.
//
// This can be used with promhttp.HandlerFor() to expose metrics:
//
//	metrics := NewPrometheusMetrics()
//	http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAllowed records a rate limit check that admitted the request.
func (m *PrometheusMetrics) RecordAllowed(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "allowed", endpoint).Inc()
}

// RecordDenied records a rate limit violation (request denied).
func (m *PrometheusMetrics) RecordDenied(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "denied", endpoint).Inc()
}

// RecordFailOpen records a request admitted because the store was unavailable.
//
// Alert on sustained increases: enforcement is degraded while this counter
// is moving.
func (m *PrometheusMetrics) RecordFailOpen(limiterType string) {
	m.failOpenTotal.WithLabelValues(limiterType).Inc()
}

// RecordCheckDuration records the duration of a rate limit check operation.
//
// If duration exceeds 10ms, this may indicate store problems that could
// trigger the circuit breaker.
func (m *PrometheusMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiterType).Observe(duration.Seconds())
}

// SetActiveKeys records the current number of active keys in the store.
func (m *PrometheusMetrics) SetActiveKeys(limiterType string, count int) {
	m.activeKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordCircuitState records the current state of the store circuit breaker.
//
// States:
//   - "closed": Normal operation, rate limiting active
//   - "open": Store failing, requests admitted fail-open
//   - "half-open": Testing recovery
//
// The state is mapped to a numeric gauge for Prometheus alerting:
//   - 0 = closed
//   - 1 = open
//   - 2 = half-open
func (m *PrometheusMetrics) RecordCircuitState(limiterType, state string) {
	var stateValue float64
	switch state {
	case "closed":
		stateValue = 0
	case "open":
		stateValue = 1
	case "half-open":
		stateValue = 2
	default:
		// Unknown state, default to closed
		stateValue = 0
	}
	m.circuitState.WithLabelValues(limiterType).Set(stateValue)
}
