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
	"quotaguard/pkg/ratelimit"
)

type WindowRepo struct{ db *sql.DB }

func NewWindowRepo(db *sql.DB) repository.WindowRepository {
	return &WindowRepo{db: db}
}

// CheckAndIncrement resolves the active window for (key, kind) and admits or
// rejects one request against it, atomically.
//
// The row is locked with SELECT ... FOR UPDATE inside a transaction, so two
// concurrent requests against the same identifier serialize on the row and
// cannot both be admitted past the limit. When no active window exists the
// insert opens a fresh one anchored at `now`; a request arriving at exactly
// the previous window_end takes this path because the lookup requires
// window_end > now.
//
// Window creation itself is serialized on a per-key advisory lock: without
// it, two first requests for an idle key would both miss the lookup and
// both insert, leaving two active windows that each admit up to the limit.
// The lock is only taken on the miss path, so established windows pay
// nothing for it.
func (repo *WindowRepo) CheckAndIncrement(ctx context.Context, key, kind string, now time.Time, window time.Duration, limit int) (ratelimit.WindowState, bool, error) {
	defer func(start time.Time) {
		metrics.RecordDBQuery("check_and_increment_window", time.Since(start))
	}(time.Now())

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const lockQuery = `
SELECT id, count, window_start, window_end
FROM counting_windows
WHERE identifier = $1 AND kind = $2 AND window_end > $3
ORDER BY window_end DESC
LIMIT 1
FOR UPDATE`

	var (
		id    int64
		state ratelimit.WindowState
	)
	err = tx.QueryRowContext(ctx, lockQuery, key, kind, now).Scan(
		&id, &state.Count, &state.WindowStart, &state.WindowEnd,
	)

	if errors.Is(err, sql.ErrNoRows) {
		// Take the per-key advisory lock, then look again: a concurrent
		// opener holds the lock until its commit, after which its window
		// is visible here and we fall through to the increment path.
		const advisoryQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`
		if _, lockErr := tx.ExecContext(ctx, advisoryQuery, key, kind); lockErr != nil {
			return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: advisory lock: %w", lockErr)
		}
		err = tx.QueryRowContext(ctx, lockQuery, key, kind, now).Scan(
			&id, &state.Count, &state.WindowStart, &state.WindowEnd,
		)
		if errors.Is(err, sql.ErrNoRows) {
			// Still no active window: open one with this request as its
			// first count.
			const insertQuery = `
INSERT INTO counting_windows (identifier, kind, count, window_start, window_end)
VALUES ($1, $2, 1, $3, $4)`
			windowEnd := now.Add(window)
			if _, err := tx.ExecContext(ctx, insertQuery, key, kind, now, windowEnd); err != nil {
				return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: insert: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: commit: %w", err)
			}
			return ratelimit.WindowState{Count: 1, WindowStart: now, WindowEnd: windowEnd}, true, nil
		}
	}
	if err != nil {
		return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: lock: %w", err)
	}

	if state.Count >= limit {
		// Rejected requests never advance the counter.
		if err := tx.Commit(); err != nil {
			return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: commit: %w", err)
		}
		return state, false, nil
	}

	const updateQuery = `UPDATE counting_windows SET count = count + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, id); err != nil {
		return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ratelimit.WindowState{}, false, fmt.Errorf("CheckAndIncrement: commit: %w", err)
	}

	state.Count++
	return state, true, nil
}

func (repo *WindowRepo) ActiveWindow(ctx context.Context, identifier string, kind entity.IdentifierKind, now time.Time) (*entity.CountingWindow, error) {
	const query = `
SELECT id, identifier, kind, count, window_start, window_end
FROM counting_windows
WHERE identifier = $1 AND kind = $2 AND window_end > $3
ORDER BY window_end DESC
LIMIT 1`
	var w entity.CountingWindow
	err := repo.db.QueryRowContext(ctx, query, identifier, kind.String(), now).Scan(
		&w.ID, &w.Identifier, &w.Kind, &w.Count, &w.WindowStart, &w.WindowEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ActiveWindow: %w", err)
	}
	return &w, nil
}

func (repo *WindowRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM counting_windows WHERE window_end < $1`
	res, err := repo.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteEndedBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteEndedBefore: rows affected: %w", err)
	}
	return n, nil
}
