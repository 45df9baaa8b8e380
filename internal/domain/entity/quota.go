package entity

import (
	"fmt"
	"time"
)

// QuotaPeriod represents one organization's usage counter for a single
// calendar month. The limit is snapshotted from the organization's plan
// when the period row is created; a later plan change only affects the
// next period.
type QuotaPeriod struct {
	ID             int64
	OrganizationID string
	PeriodKey      string // "YYYY-MM", UTC
	Used           int64
	Limit          int64
	CreatedAt      time.Time
}

// Remaining returns how much quota is left in the period. Never negative.
func (p *QuotaPeriod) Remaining() int64 {
	remaining := p.Limit - p.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted reports whether the period has no quota left.
func (p *QuotaPeriod) Exhausted() bool {
	return p.Used >= p.Limit
}

// Validate validates the QuotaPeriod entity fields.
func (p *QuotaPeriod) Validate() error {
	if p.OrganizationID == "" {
		return &ValidationError{Field: "organization_id", Message: "must not be empty"}
	}
	if _, err := time.Parse(periodKeyLayout, p.PeriodKey); err != nil {
		return &ValidationError{Field: "period_key", Message: fmt.Sprintf("must be YYYY-MM, got %q", p.PeriodKey)}
	}
	if p.Used < 0 {
		return &ValidationError{Field: "used", Message: "must be non-negative"}
	}
	if p.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "must be non-negative"}
	}
	return nil
}

// periodKeyLayout is the time.Format layout for period keys.
const periodKeyLayout = "2006-01"

// PeriodKeyFor returns the period key for the month containing the given
// instant, evaluated in UTC. Requests just before and just after UTC
// midnight on the 1st land in different periods.
func PeriodKeyFor(t time.Time) string {
	return t.UTC().Format(periodKeyLayout)
}

// NextPeriodStart returns the first instant of the month after the one
// containing the given instant, in UTC. This is when the current period's
// usage stops counting.
func NextPeriodStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
