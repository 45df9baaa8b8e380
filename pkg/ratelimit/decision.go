package ratelimit

import (
	"fmt"
	"time"
)

// UnlimitedLimit is the sentinel limit value meaning "no limit". Checks
// against this limit are admitted without touching the store, and the
// reported remaining count stays pinned at the sentinel.
const UnlimitedLimit = 999999

// Decision represents the result of a rate limit check.
//
// This domain model encapsulates all information about whether a request
// should be allowed, along with metadata for the client to understand
// the current rate limit state.
type Decision struct {
	// Key is the identifier used for rate limiting (e.g., IP address, user ID).
	Key string

	// Allowed indicates whether the request should be permitted.
	// - true: Request is within the rate limit
	// - false: Request exceeds the rate limit and should be rejected
	Allowed bool

	// Limit is the maximum number of requests allowed in the time window.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	// 0 means the limit has been reached.
	Remaining int

	// ResetAt is the time when the current window ends and counting starts
	// over. Clients should wait until this time before retrying.
	ResetAt time.Time

	// RetryAfter is the duration the client should wait before retrying.
	// This is calculated as ResetAt - now at decision time.
	RetryAfter time.Duration

	// LimiterType identifies which rate limiter made this decision.
	// Examples: "ip", "user"
	LimiterType string

	// FailOpen is true when the request was admitted because the store was
	// unavailable rather than because the limit allowed it. Fail-open
	// decisions carry no meaningful Remaining or ResetAt values.
	FailOpen bool
}

// String returns a human-readable representation of the decision.
func (d *Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"Decision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s, FailOpen: %t}",
			d.Key,
			d.LimiterType,
			d.Remaining,
			d.Limit,
			d.ResetAt.Format(time.RFC3339),
			d.FailOpen,
		)
	}

	return fmt.Sprintf(
		"Decision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s, ResetAt: %s}",
		d.Key,
		d.LimiterType,
		d.Limit,
		d.RetryAfter.String(),
		d.ResetAt.Format(time.RFC3339),
	)
}

// IsDenied returns true if the request is denied.
//
// This is a convenience method equivalent to checking !Allowed.
func (d *Decision) IsDenied() bool {
	return !d.Allowed
}

// Unlimited returns true if the decision was made against the unlimited
// sentinel limit.
func (d *Decision) Unlimited() bool {
	return d.Limit >= UnlimitedLimit
}

// ResetAtUnix returns the reset time as a Unix timestamp.
//
// This is useful for HTTP headers like X-RateLimit-Reset.
func (d *Decision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the retry delay in seconds.
//
// This is useful for HTTP headers like Retry-After.
func (d *Decision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// NewAllowedDecision creates a Decision for an allowed request.
//
// Parameters:
//   - key: The rate limit key (e.g., IP address, user ID)
//   - limiterType: Type of rate limiter (e.g., "ip", "user")
//   - limit: Maximum requests allowed in the window
//   - remaining: Requests remaining in the current window
//   - resetAt: Time when the current window ends
//   - now: Instant the decision was made
//
// Returns a Decision with Allowed=true.
func NewAllowedDecision(key, limiterType string, limit, remaining int, resetAt, now time.Time) *Decision {
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Decision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}

// NewDeniedDecision creates a Decision for a denied request.
//
// Parameters:
//   - key: The rate limit key (e.g., IP address, user ID)
//   - limiterType: Type of rate limiter (e.g., "ip", "user")
//   - limit: Maximum requests allowed in the window
//   - resetAt: Time when the current window ends
//   - now: Instant the decision was made
//
// Returns a Decision with Allowed=false and Remaining=0.
func NewDeniedDecision(key, limiterType string, limit int, resetAt, now time.Time) *Decision {
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Decision{
		Key:         key,
		Allowed:     false,
		Limit:       limit,
		Remaining:   0,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}

// NewFailOpenDecision creates a Decision for a request admitted because the
// store was unavailable.
func NewFailOpenDecision(key, limiterType string, limit int, now time.Time) *Decision {
	return &Decision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   limit,
		ResetAt:     now,
		LimiterType: limiterType,
		FailOpen:    true,
	}
}
