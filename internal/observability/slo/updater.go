package slo

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	requestsTotalMetric   = "http_requests_total"
	requestDurationMetric = "http_request_duration_seconds"
)

// Updater periodically recomputes the SLO gauges from the metrics exposed
// by a prometheus Gatherer (normally the default registry). Availability and
// error rate are derived from http_requests_total; latency percentiles are
// estimated from the http_request_duration_seconds histogram buckets.
type Updater struct {
	gatherer prometheus.Gatherer
	interval time.Duration
	logger   *slog.Logger
}

// NewUpdater creates an updater reading from the given gatherer.
// A non-positive interval defaults to one minute.
func NewUpdater(g prometheus.Gatherer, interval time.Duration, logger *slog.Logger) *Updater {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{gatherer: g, interval: interval, logger: logger}
}

// Start runs the update loop until ctx is cancelled.
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.Refresh()
		}
	}
}

// Refresh gathers the current metric families and updates the SLO gauges once.
func (u *Updater) Refresh() {
	families, err := u.gatherer.Gather()
	if err != nil {
		u.logger.Warn("gather metrics for SLO update", slog.Any("error", err))
		return
	}

	for _, mf := range families {
		switch mf.GetName() {
		case requestsTotalMetric:
			updateAvailabilityFromCounters(mf)
		case requestDurationMetric:
			updateLatencyFromHistogram(mf)
		}
	}
}

func updateAvailabilityFromCounters(mf *dto.MetricFamily) {
	var total, errors float64
	for _, m := range mf.GetMetric() {
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status" && len(lp.GetValue()) > 0 && lp.GetValue()[0] == '5' {
				errors += v
			}
		}
	}
	if total == 0 {
		return
	}
	UpdateAvailability((total - errors) / total)
	UpdateErrorRate(errors / total)
}

func updateLatencyFromHistogram(mf *dto.MetricFamily) {
	// Merge all label combinations into one cumulative bucket set.
	merged := map[float64]uint64{}
	var count uint64
	for _, m := range mf.GetMetric() {
		h := m.GetHistogram()
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			merged[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if count == 0 {
		return
	}

	UpdateLatencyP95(bucketQuantile(merged, count, 0.95))
	UpdateLatencyP99(bucketQuantile(merged, count, 0.99))
}

// bucketQuantile returns the upper bound of the first bucket whose cumulative
// count covers the requested quantile. This is a conservative estimate: the
// true value is at or below the returned bound.
func bucketQuantile(buckets map[float64]uint64, count uint64, q float64) float64 {
	bounds := make([]float64, 0, len(buckets))
	for b := range buckets {
		bounds = append(bounds, b)
	}
	sortFloats(bounds)

	rank := q * float64(count)
	for _, b := range bounds {
		if float64(buckets[b]) >= rank {
			if math.IsInf(b, +1) {
				// All mass in the overflow bucket, fall back to the
				// largest finite bound.
				if len(bounds) > 1 {
					return bounds[len(bounds)-2]
				}
				return 0
			}
			return b
		}
	}
	return 0
}

func sortFloats(s []float64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
