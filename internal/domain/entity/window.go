package entity

import (
	"fmt"
	"time"
)

// IdentifierKind classifies the subject a counting window or violation
// belongs to.
type IdentifierKind string

const (
	// KindIP identifies a client by source IP address.
	KindIP IdentifierKind = "IP"

	// KindUser identifies an authenticated user.
	KindUser IdentifierKind = "USER"

	// KindOrganization identifies an organization (quota violations only;
	// counting windows are never keyed by organization).
	KindOrganization IdentifierKind = "ORGANIZATION"
)

// String returns the string representation of the identifier kind.
func (k IdentifierKind) String() string {
	return string(k)
}

// IsValid checks if the identifier kind is a recognized value.
func (k IdentifierKind) IsValid() bool {
	switch k {
	case KindIP, KindUser, KindOrganization:
		return true
	default:
		return false
	}
}

// CountingWindow represents one fixed counting window for a single
// identifier. A window is created on the first request after the previous
// window ended, so windows are aligned to first use, not to wall-clock
// boundaries.
type CountingWindow struct {
	ID          int64
	Identifier  string
	Kind        IdentifierKind
	Count       int
	WindowStart time.Time
	WindowEnd   time.Time
}

// Active reports whether the window still accepts requests at the given
// instant. A window covers [WindowStart, WindowEnd): a request arriving at
// exactly WindowEnd belongs to a fresh window.
func (w *CountingWindow) Active(now time.Time) bool {
	return now.Before(w.WindowEnd)
}

// Remaining returns how many requests the window can still admit under the
// given limit. Never negative.
func (w *CountingWindow) Remaining(limit int) int {
	remaining := limit - w.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Validate validates the CountingWindow entity fields.
func (w *CountingWindow) Validate() error {
	if w.Identifier == "" {
		return &ValidationError{Field: "identifier", Message: "must not be empty"}
	}
	if w.Kind != KindIP && w.Kind != KindUser {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("must be IP or USER, got %q", w.Kind)}
	}
	if w.Count < 0 {
		return &ValidationError{Field: "count", Message: "must be non-negative"}
	}
	if !w.WindowEnd.After(w.WindowStart) {
		return &ValidationError{Field: "window_end", Message: "must be after window_start"}
	}
	return nil
}
