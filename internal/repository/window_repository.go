package repository

import (
	"context"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/pkg/ratelimit"
)

// WindowRepository persists fixed counting windows keyed by identifier and
// kind. It extends ratelimit.WindowStore with the read and retention
// operations the rest of the system needs.
type WindowRepository interface {
	// CheckAndIncrement atomically resolves the active window for the key
	// and admits or rejects one request against it. See
	// ratelimit.WindowStore for the full contract.
	CheckAndIncrement(ctx context.Context, key, kind string, now time.Time, window time.Duration, limit int) (ratelimit.WindowState, bool, error)

	// ActiveWindow returns the window covering `now` for the identifier,
	// or nil if none exists.
	ActiveWindow(ctx context.Context, identifier string, kind entity.IdentifierKind, now time.Time) (*entity.CountingWindow, error)

	// DeleteEndedBefore removes windows whose window_end is before the
	// cutoff and returns the number of rows deleted.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
