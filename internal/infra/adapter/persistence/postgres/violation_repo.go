package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/observability/metrics"
	"quotaguard/internal/repository"
)

type ViolationRepo struct{ db *sql.DB }

func NewViolationRepo(db *sql.DB) repository.ViolationRepository {
	return &ViolationRepo{db: db}
}

// scanViolation is a helper function to scan a violation row.
func scanViolation(rows *sql.Rows) (*entity.ViolationRecord, error) {
	var v entity.ViolationRecord
	if err := rows.Scan(
		&v.ID, &v.Identifier, &v.Kind, &v.Type,
		&v.AttemptedCount, &v.Limit, &v.Endpoint, &v.UserAgent, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func (repo *ViolationRepo) Insert(ctx context.Context, v *entity.ViolationRecord) error {
	defer func(start time.Time) {
		metrics.RecordDBQuery("insert_violation", time.Since(start))
	}(time.Now())

	const query = `
INSERT INTO violations (id, identifier, kind, violation_type, attempted_count, quota_limit, endpoint, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, query,
		v.ID, v.Identifier, v.Kind.String(), v.Type.String(),
		v.AttemptedCount, v.Limit, v.Endpoint, v.UserAgent, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

func (repo *ViolationRepo) Recent(ctx context.Context, identifier string, limit int) ([]*entity.ViolationRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if identifier == "" {
		const query = `
SELECT id, identifier, kind, violation_type, attempted_count, quota_limit, endpoint, user_agent, created_at
FROM violations
ORDER BY created_at DESC
LIMIT $1`
		rows, err = repo.db.QueryContext(ctx, query, limit)
	} else {
		const query = `
SELECT id, identifier, kind, violation_type, attempted_count, quota_limit, endpoint, user_agent, created_at
FROM violations
WHERE identifier = $1
ORDER BY created_at DESC
LIMIT $2`
		rows, err = repo.db.QueryContext(ctx, query, identifier, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	violations := make([]*entity.ViolationRecord, 0, limit)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("Recent: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

func (repo *ViolationRepo) TopViolators(ctx context.Context, since time.Time, limit int) ([]*entity.ViolatorStat, error) {
	const query = `
SELECT identifier, kind, COUNT(*) AS violation_count, MAX(created_at) AS last_seen
FROM violations
WHERE created_at >= $1
GROUP BY identifier, kind
ORDER BY violation_count DESC, last_seen DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("TopViolators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]*entity.ViolatorStat, 0, limit)
	for rows.Next() {
		var s entity.ViolatorStat
		if err := rows.Scan(&s.Identifier, &s.Kind, &s.Count, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("TopViolators: %w", err)
		}
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}

func (repo *ViolationRepo) CountSince(ctx context.Context, since time.Time, vtype entity.ViolationType) (int64, error) {
	var (
		count int64
		err   error
	)
	if vtype == "" {
		const query = `SELECT COUNT(*) FROM violations WHERE created_at >= $1`
		err = repo.db.QueryRowContext(ctx, query, since).Scan(&count)
	} else {
		const query = `SELECT COUNT(*) FROM violations WHERE created_at >= $1 AND violation_type = $2`
		err = repo.db.QueryRowContext(ctx, query, since, vtype.String()).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("CountSince: %w", err)
	}
	return count, nil
}

func (repo *ViolationRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM violations WHERE created_at < $1`
	res, err := repo.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteCreatedBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteCreatedBefore: rows affected: %w", err)
	}
	return n, nil
}
