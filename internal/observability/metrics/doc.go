// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Enforcement metrics (violations, quota checks, sweeps)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "quotaguard/internal/observability/metrics"
//
//	func checkQuota(orgID string) {
//	    start := time.Now()
//	    // ... check and reserve quota ...
//	    metrics.RecordQuotaCheck(metrics.QuotaResultAllowed, time.Since(start))
//	}
package metrics
