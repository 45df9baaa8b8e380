package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/observability/metrics"
	"quotaguard/internal/repository"
)

type QuotaRepo struct{ db *sql.DB }

func NewQuotaRepo(db *sql.DB) repository.QuotaRepository {
	return &QuotaRepo{db: db}
}

// GetOrCreatePeriod returns the period row for (organizationID, periodKey),
// creating it lazily on first use. The insert is race-safe via ON CONFLICT
// DO NOTHING against the unique (organization_id, period_key) index:
// concurrent first requests of a month all converge on a single row, and
// the limit snapshotted by the winning insert is what every caller reads
// back.
func (repo *QuotaRepo) GetOrCreatePeriod(ctx context.Context, organizationID, periodKey string, limit int64) (*entity.QuotaPeriod, error) {
	const insertQuery = `
INSERT INTO quota_periods (organization_id, period_key, used, quota_limit, created_at)
VALUES ($1, $2, 0, $3, NOW())
ON CONFLICT (organization_id, period_key) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, insertQuery, organizationID, periodKey, limit); err != nil {
		return nil, fmt.Errorf("GetOrCreatePeriod: insert: %w", err)
	}

	period, err := repo.GetPeriod(ctx, organizationID, periodKey)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreatePeriod: %w", err)
	}
	if period == nil {
		return nil, fmt.Errorf("GetOrCreatePeriod: period missing after insert")
	}
	return period, nil
}

// IncrementIfBelowLimit consumes one unit of quota with a single
// conditional UPDATE. The limit check and the increment happen in the same
// statement, so concurrent requests at the last unit cannot both consume
// it: the database serializes the row updates and re-evaluates used <
// quota_limit for each.
func (repo *QuotaRepo) IncrementIfBelowLimit(ctx context.Context, organizationID, periodKey string) (*entity.QuotaPeriod, bool, error) {
	defer func(start time.Time) {
		metrics.RecordDBQuery("increment_quota", time.Since(start))
	}(time.Now())

	const query = `
UPDATE quota_periods
SET used = used + 1
WHERE organization_id = $1 AND period_key = $2 AND used < quota_limit
RETURNING id, organization_id, period_key, used, quota_limit, created_at`

	var p entity.QuotaPeriod
	err := repo.db.QueryRowContext(ctx, query, organizationID, periodKey).Scan(
		&p.ID, &p.OrganizationID, &p.PeriodKey, &p.Used, &p.Limit, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Exhausted (or missing) period: nothing was consumed. Read the
		// row back so the caller can report used/limit in the rejection.
		period, err := repo.GetPeriod(ctx, organizationID, periodKey)
		if err != nil {
			return nil, false, fmt.Errorf("IncrementIfBelowLimit: %w", err)
		}
		return period, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("IncrementIfBelowLimit: %w", err)
	}
	return &p, true, nil
}

func (repo *QuotaRepo) GetPeriod(ctx context.Context, organizationID, periodKey string) (*entity.QuotaPeriod, error) {
	const query = `
SELECT id, organization_id, period_key, used, quota_limit, created_at
FROM quota_periods
WHERE organization_id = $1 AND period_key = $2
LIMIT 1`
	var p entity.QuotaPeriod
	err := repo.db.QueryRowContext(ctx, query, organizationID, periodKey).Scan(
		&p.ID, &p.OrganizationID, &p.PeriodKey, &p.Used, &p.Limit, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetPeriod: %w", err)
	}
	return &p, nil
}
