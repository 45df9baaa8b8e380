package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SweeperMetrics provides Prometheus metrics for the sweeper binary.
//
// Metrics:
//   - sweeper_job_runs_total: Total sweep runs by status (success/failure)
//   - sweeper_last_success_timestamp: Unix timestamp of the last successful run
//   - sweeper_config_fallbacks_total: Configuration fallbacks applied, by field
//
// Row counts and sweep durations are recorded through the shared
// observability metrics package; these cover the job scheduling layer.
type SweeperMetrics struct {
	// JobRunsTotal counts sweep runs by outcome.
	// Labels: status (success, failure)
	JobRunsTotal *prometheus.CounterVec

	// LastSuccessTimestamp records the Unix time of the last successful
	// sweep. Alerting on staleness of this gauge catches a sweeper that
	// is scheduled but failing.
	LastSuccessTimestamp prometheus.Gauge

	// ConfigFallbacksTotal counts configuration values that failed
	// validation and were replaced by their defaults.
	// Labels: field
	ConfigFallbacksTotal *prometheus.CounterVec
}

// NewSweeperMetrics creates the sweeper metrics and registers them with
// the default Prometheus registry.
func NewSweeperMetrics() *SweeperMetrics {
	return &SweeperMetrics{
		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sweeper_job_runs_total",
			Help: "Total number of sweep runs by status (success/failure)",
		}, []string{"status"}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sweeper_last_success_timestamp",
			Help: "Unix timestamp of the last successful sweep run",
		}),

		ConfigFallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sweeper_config_fallbacks_total",
			Help: "Total configuration fallbacks applied, by field",
		}, []string{"field"}),
	}
}

// RecordJobRun increments the run counter for the given status,
// either "success" or "failure".
func (m *SweeperMetrics) RecordJobRun(status string) {
	m.JobRunsTotal.WithLabelValues(status).Inc()
}

// RecordLastSuccess records the current time as the last successful
// sweep completion.
func (m *SweeperMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}

// RecordConfigFallback counts a configuration field that fell back to
// its default value.
func (m *SweeperMetrics) RecordConfigFallback(field string) {
	m.ConfigFallbacksTotal.WithLabelValues(field).Inc()
}
