package worker

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// globalTestMetrics is created once: NewSweeperMetrics registers with the
// default registry, so a second call would panic with duplicate collectors.
var globalTestMetrics = NewSweeperMetrics()

func TestNewSweeperMetrics(t *testing.T) {
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewSweeperMetrics returned nil")
	}

	if metrics.JobRunsTotal == nil {
		t.Error("JobRunsTotal is nil")
	}

	if metrics.LastSuccessTimestamp == nil {
		t.Error("LastSuccessTimestamp is nil")
	}

	if metrics.ConfigFallbacksTotal == nil {
		t.Error("ConfigFallbacksTotal is nil")
	}
}

func TestSweeperMetrics_RecordJobRun(t *testing.T) {
	// Use a custom registry for isolated counting
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_sweeper_job_runs_total",
		Help: "Test counter",
	}, []string{"status"})
	reg.MustRegister(counter)

	metrics := &SweeperMetrics{JobRunsTotal: counter}

	metrics.RecordJobRun("success")
	metrics.RecordJobRun("success")
	metrics.RecordJobRun("failure")

	if got := testutil.ToFloat64(counter.WithLabelValues("success")); got != 2 {
		t.Errorf("success runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure runs = %v, want 1", got)
	}
}

func TestSweeperMetrics_RecordLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_sweeper_last_success_timestamp",
		Help: "Test gauge",
	})
	reg.MustRegister(gauge)

	metrics := &SweeperMetrics{LastSuccessTimestamp: gauge}

	before := float64(time.Now().Unix())
	metrics.RecordLastSuccess()
	after := float64(time.Now().Unix())

	got := testutil.ToFloat64(gauge)
	if got < before || got > after+1 {
		t.Errorf("last success timestamp = %v, want between %v and %v", got, before, after)
	}
}

func TestSweeperMetrics_RecordConfigFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_sweeper_config_fallbacks_total",
		Help: "Test counter",
	}, []string{"field"})
	reg.MustRegister(counter)

	metrics := &SweeperMetrics{ConfigFallbacksTotal: counter}

	metrics.RecordConfigFallback("schedule")
	metrics.RecordConfigFallback("schedule")
	metrics.RecordConfigFallback("timezone")

	if got := testutil.ToFloat64(counter.WithLabelValues("schedule")); got != 2 {
		t.Errorf("schedule fallbacks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("timezone")); got != 1 {
		t.Errorf("timezone fallbacks = %v, want 1", got)
	}
}

func TestLoadSweeperConfigFromEnv_RecordsFallbackMetrics(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "definitely not cron")

	metrics := globalTestMetrics
	baseline := testutil.ToFloat64(metrics.ConfigFallbacksTotal.WithLabelValues("schedule"))

	config := LoadSweeperConfigFromEnv(testLogger(), metrics)

	if config.Schedule != DefaultSweeperConfig().Schedule {
		t.Errorf("Schedule = %q, want default", config.Schedule)
	}

	got := testutil.ToFloat64(metrics.ConfigFallbacksTotal.WithLabelValues("schedule"))
	if got != baseline+1 {
		t.Errorf("schedule fallback counter = %v, want %v", got, baseline+1)
	}
}
