// Package slo tracks whether the enforcement service meets its service
// level objectives. The gauges are recomputed by the Updater from the
// HTTP metrics the middleware chain already records; nothing in the
// request path touches them directly.
package slo

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Objectives for the enforcement boundary. It fronts every tenant
// request, so availability is held tighter than the products behind it;
// the latency targets cover the full middleware chain including the
// store round-trip.
const (
	TargetAvailability = 0.999
	TargetErrorRate    = 0.001
	TargetLatencyP95   = 0.200 // seconds
	TargetLatencyP99   = 0.500 // seconds
)

var (
	// SLOAvailability is (total - 5xx) / total across observed requests.
	SLOAvailability = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_availability_ratio",
		Help: fmt.Sprintf("Availability ratio (0-1), target %.3f", TargetAvailability),
	})

	// SLOErrorRate is 5xx / total across observed requests.
	SLOErrorRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_error_rate_ratio",
		Help: fmt.Sprintf("Error rate ratio (0-1), target below %.3f", TargetErrorRate),
	})

	// SLOLatencyP95 estimates p95 request latency from the duration
	// histogram buckets.
	SLOLatencyP95 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_latency_p95_seconds",
		Help: fmt.Sprintf("Estimated p95 latency in seconds, target %.3f", TargetLatencyP95),
	})

	// SLOLatencyP99 estimates p99 request latency from the duration
	// histogram buckets.
	SLOLatencyP99 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_latency_p99_seconds",
		Help: fmt.Sprintf("Estimated p99 latency in seconds, target %.3f", TargetLatencyP99),
	})
)

// UpdateAvailability sets the availability gauge.
func UpdateAvailability(ratio float64) { SLOAvailability.Set(ratio) }

// UpdateErrorRate sets the error rate gauge.
func UpdateErrorRate(ratio float64) { SLOErrorRate.Set(ratio) }

// UpdateLatencyP95 sets the p95 latency gauge.
func UpdateLatencyP95(seconds float64) { SLOLatencyP95.Set(seconds) }

// UpdateLatencyP99 sets the p99 latency gauge.
func UpdateLatencyP99(seconds float64) { SLOLatencyP99.Set(seconds) }
