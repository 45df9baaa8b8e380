package metrics

import (
	"time"

	"quotaguard/internal/domain/entity"
)

// RecordViolation records one violation written to the violation log.
// The label is the violation type, not the identifier, to keep cardinality low.
func RecordViolation(vtype entity.ViolationType) {
	ViolationsRecordedTotal.WithLabelValues(vtype.String()).Inc()
}

// Quota check results.
const (
	QuotaResultAllowed   = "allowed"
	QuotaResultDenied    = "denied"
	QuotaResultUnlimited = "unlimited"
	QuotaResultFailOpen  = "fail_open"
)

// RecordQuotaCheck records the outcome of one monthly quota check.
//
// Parameters:
//   - result: one of QuotaResultAllowed, QuotaResultDenied,
//     QuotaResultUnlimited, QuotaResultFailOpen
//   - duration: time spent on the check including the conditional increment
func RecordQuotaCheck(result string, duration time.Duration) {
	QuotaChecksTotal.WithLabelValues(result).Inc()
	QuotaCheckDuration.Observe(duration.Seconds())
}

// RecordSweep records the outcome of one retention sweep run.
//
// Parameters:
//   - windowsDeleted: expired counting windows removed
//   - violationsDeleted: aged violation records removed
//   - duration: total sweep duration
func RecordSweep(windowsDeleted, violationsDeleted int64, duration time.Duration) {
	SweepDeletedTotal.WithLabelValues("counting_windows").Add(float64(windowsDeleted))
	SweepDeletedTotal.WithLabelValues("violations").Add(float64(violationsDeleted))
	SweepDuration.Observe(duration.Seconds())
}

// RecordSweepError records a failed retention sweep run.
func RecordSweepError() {
	SweepErrorsTotal.Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "increment_quota", "insert_violation").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
