package repository

import (
	"context"
	"time"

	"quotaguard/internal/domain/entity"
)

// ViolationRepository persists the append-only violation log.
type ViolationRepository interface {
	// Insert appends one violation record. Records are never updated.
	Insert(ctx context.Context, v *entity.ViolationRecord) error

	// Recent returns the newest violations for an identifier, most recent
	// first. An empty identifier returns the newest violations overall.
	Recent(ctx context.Context, identifier string, limit int) ([]*entity.ViolationRecord, error)

	// TopViolators aggregates violations since the given instant and
	// returns the identifiers with the most, ordered by count descending.
	TopViolators(ctx context.Context, since time.Time, limit int) ([]*entity.ViolatorStat, error)

	// CountSince counts violations created at or after the given instant.
	// A zero-value vtype counts all types.
	CountSince(ctx context.Context, since time.Time, vtype entity.ViolationType) (int64, error)

	// DeleteCreatedBefore removes violations older than the cutoff and
	// returns the number of rows deleted.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
