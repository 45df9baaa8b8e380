// Package quota provides use cases for monthly usage quota tracking.
// It implements lazy period creation, atomic usage consumption against the
// quota store, and read-only status reporting for authenticated callers.
package quota

import "errors"

// Sentinel errors for quota use case operations.
var (
	// ErrPeriodUnavailable indicates that a quota period could not be
	// read back after creation. This should not happen in normal
	// operation since quota periods are never deleted.
	ErrPeriodUnavailable = errors.New("quota period unavailable")
)
