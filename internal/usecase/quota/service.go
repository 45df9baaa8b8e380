package quota

import (
	"context"
	"fmt"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/repository"
	"quotaguard/pkg/ratelimit"
)

// Decision is the outcome of a quota check for a single request.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Used is the organization's consumed usage after this check.
	Used int64

	// Limit is the quota snapshotted on the organization's current period.
	Limit int64

	// ResetsAt is when the current period ends: midnight UTC on the
	// first day of the next month.
	ResetsAt time.Time

	// Unlimited is true when no quota applies to the caller, either
	// because they belong to no organization or because the plan quota
	// is the unlimited sentinel.
	Unlimited bool
}

// Remaining returns how many units of quota are left.
func (d *Decision) Remaining() int64 {
	if d.Unlimited {
		return ratelimit.UnlimitedLimit
	}
	remaining := d.Limit - d.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Service provides quota tracking use cases.
// It handles period resolution and plan lookup, and delegates atomic
// consumption to the repository.
type Service struct {
	Repo  repository.QuotaRepository
	Clock ratelimit.Clock

	// Plans maps a subscription plan name to its monthly quota.
	// Unknown plans fall back to the "free" entry.
	Plans map[string]int
}

// CheckAndReserve consumes one unit of the organization's monthly quota
// if any remains.
//
// Users without an organization are unlimited and never touch the store.
// The period for the current UTC month is created lazily on first use,
// snapshotting the plan's quota at creation time; later plan changes do
// not affect an already-open period. Consumption is a single conditional
// increment in the store, so concurrent requests never overshoot the
// limit.
//
// Store errors are returned to the caller; the enforcement boundary
// decides whether to fail open.
func (s *Service) CheckAndReserve(ctx context.Context, orgID, plan string) (*Decision, error) {
	if orgID == "" {
		return &Decision{Allowed: true, Unlimited: true}, nil
	}

	limit := s.planQuota(plan)
	now := s.now()
	resetsAt := entity.NextPeriodStart(now)

	if limit >= ratelimit.UnlimitedLimit {
		return &Decision{Allowed: true, Unlimited: true, Limit: int64(limit), ResetsAt: resetsAt}, nil
	}

	periodKey := entity.PeriodKeyFor(now)
	if _, err := s.Repo.GetOrCreatePeriod(ctx, orgID, periodKey, int64(limit)); err != nil {
		return nil, fmt.Errorf("get or create quota period: %w", err)
	}

	period, consumed, err := s.Repo.IncrementIfBelowLimit(ctx, orgID, periodKey)
	if err != nil {
		return nil, fmt.Errorf("consume quota: %w", err)
	}
	if period == nil {
		// The period was just created, so a missing row means the store
		// is inconsistent.
		return nil, ErrPeriodUnavailable
	}

	return &Decision{
		Allowed:  consumed,
		Used:     period.Used,
		Limit:    period.Limit,
		ResetsAt: resetsAt,
	}, nil
}

// Status reports the organization's current quota standing without
// consuming any usage.
//
// If no period exists yet for the current month, the report reflects
// zero usage against the plan's quota; the period itself is not created.
func (s *Service) Status(ctx context.Context, orgID, plan string) (*Decision, error) {
	now := s.now()
	resetsAt := entity.NextPeriodStart(now)

	if orgID == "" {
		return &Decision{Allowed: true, Unlimited: true, ResetsAt: resetsAt}, nil
	}

	limit := s.planQuota(plan)
	if limit >= ratelimit.UnlimitedLimit {
		return &Decision{Allowed: true, Unlimited: true, Limit: int64(limit), ResetsAt: resetsAt}, nil
	}

	period, err := s.Repo.GetPeriod(ctx, orgID, entity.PeriodKeyFor(now))
	if err != nil {
		return nil, fmt.Errorf("get quota period: %w", err)
	}
	if period == nil {
		return &Decision{Allowed: true, Used: 0, Limit: int64(limit), ResetsAt: resetsAt}, nil
	}

	return &Decision{
		Allowed:  period.Used < period.Limit,
		Used:     period.Used,
		Limit:    period.Limit,
		ResetsAt: resetsAt,
	}, nil
}

func (s *Service) planQuota(plan string) int {
	if quota, ok := s.Plans[plan]; ok {
		return quota
	}
	return s.Plans["free"]
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}
