package repository

import (
	"context"

	"quotaguard/internal/domain/entity"
)

// QuotaRepository persists per-organization monthly usage counters.
type QuotaRepository interface {
	// GetOrCreatePeriod returns the period row for (organizationID,
	// periodKey), creating it with used=0 and the given limit if it does
	// not exist yet. Creation is race-safe: concurrent callers for the
	// same period all observe a single row, and the limit snapshotted by
	// the first writer wins.
	GetOrCreatePeriod(ctx context.Context, organizationID, periodKey string, limit int64) (*entity.QuotaPeriod, error)

	// IncrementIfBelowLimit consumes one unit of quota if, and only if,
	// used < limit at execution time, as a single conditional statement.
	// It returns the period state after the attempt and whether the unit
	// was consumed.
	IncrementIfBelowLimit(ctx context.Context, organizationID, periodKey string) (*entity.QuotaPeriod, bool, error)

	// GetPeriod returns the period row, or nil if it does not exist.
	GetPeriod(ctx context.Context, organizationID, periodKey string) (*entity.QuotaPeriod, error)
}
