package violation

import (
	"context"
	"fmt"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/repository"
	"quotaguard/pkg/ratelimit"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100

	defaultTopDays  = 7
	defaultTopLimit = 10
	maxTopLimit     = 100

	defaultStatsHours = 24
)

// Stats summarizes violation volume over a lookback window.
type Stats struct {
	Since time.Time
	Type  entity.ViolationType
	Count int64
}

// Service provides read-side analytics over the violation log.
type Service struct {
	Repo  repository.ViolationRepository
	Clock ratelimit.Clock
}

// Recent returns the newest violations, most recent first. An empty
// identifier returns violations across all identifiers. Limits outside
// [1, 100] are clamped.
func (s *Service) Recent(ctx context.Context, identifier string, limit int) ([]*entity.ViolationRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	records, err := s.Repo.Recent(ctx, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("recent violations: %w", err)
	}
	return records, nil
}

// TopViolators returns the identifiers with the most violations over the
// last `days` days, ordered by count descending. Non-positive days and
// limits fall back to defaults.
func (s *Service) TopViolators(ctx context.Context, days, limit int) ([]*entity.ViolatorStat, error) {
	if days <= 0 {
		days = defaultTopDays
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	stats, err := s.Repo.TopViolators(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top violators: %w", err)
	}
	return stats, nil
}

// CountSince counts violations over the last `hours` hours, optionally
// restricted to one violation type. A zero-value vtype counts all types.
func (s *Service) CountSince(ctx context.Context, hours int, vtype entity.ViolationType) (*Stats, error) {
	if hours <= 0 {
		hours = defaultStatsHours
	}

	since := s.now().Add(-time.Duration(hours) * time.Hour)
	count, err := s.Repo.CountSince(ctx, since, vtype)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}
	return &Stats{Since: since, Type: vtype, Count: count}, nil
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}
