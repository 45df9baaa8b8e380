// Package sweep provides the retention use case: deleting counting
// windows and violation records that have aged past their retention
// periods. Quota periods are never swept; they are the billing record.
package sweep

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"quotaguard/internal/observability/tracing"
	"quotaguard/internal/repository"
	"quotaguard/pkg/ratelimit"
)

// Stats reports the outcome of one sweep run.
type Stats struct {
	WindowsDeleted    int64
	ViolationsDeleted int64
}

// Service deletes expired enforcement data.
// Each run is idempotent: a second run over the same data deletes
// nothing.
type Service struct {
	Windows    repository.WindowRepository
	Violations repository.ViolationRepository
	Clock      ratelimit.Clock

	// WindowRetention is how long ended counting windows are kept.
	WindowRetention time.Duration

	// ViolationRetention is how long violation records are kept.
	ViolationRetention time.Duration
}

// Sweep deletes windows that ended before now minus WindowRetention and
// violations created before now minus ViolationRetention. The two
// deletes run concurrently; the first error cancels the other and is
// returned along with whatever was deleted before the failure.
func (s *Service) Sweep(ctx context.Context) (*Stats, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "retention-sweep")
	defer span.End()

	now := s.now()
	stats := &Stats{}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deleted, err := s.Windows.DeleteEndedBefore(ctx, now.Add(-s.WindowRetention))
		if err != nil {
			return fmt.Errorf("sweep windows: %w", err)
		}
		stats.WindowsDeleted = deleted
		return nil
	})

	g.Go(func() error {
		deleted, err := s.Violations.DeleteCreatedBefore(ctx, now.Add(-s.ViolationRetention))
		if err != nil {
			return fmt.Errorf("sweep violations: %w", err)
		}
		stats.ViolationsDeleted = deleted
		return nil
	})

	err := g.Wait()
	span.SetAttributes(
		attribute.Int64("sweep.windows_deleted", stats.WindowsDeleted),
		attribute.Int64("sweep.violations_deleted", stats.ViolationsDeleted),
	)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}
