// Package ratelimit provides framework-agnostic fixed-window rate limiting.
//
// This package implements rate limiting using pluggable storage backends and
// metrics collectors. Windows are fixed-length and anchored to first use: the
// first request for an idle identifier opens a window, every request inside
// [start, end) increments its counter, and a request at or after the end
// opens a fresh window. It is designed to be reusable across different
// contexts (HTTP, gRPC, CLI, background jobs).
package ratelimit

import (
	"context"
	"time"
)

// WindowState is a snapshot of one identifier's current counting window as
// returned by a store operation.
type WindowState struct {
	// Count is the number of admitted requests in the window, including the
	// current request when it was admitted.
	Count int

	// WindowStart is when the window opened (first request after the
	// previous window ended).
	WindowStart time.Time

	// WindowEnd is WindowStart plus the window length. The window covers
	// [WindowStart, WindowEnd); a request at exactly WindowEnd belongs to
	// the next window.
	WindowEnd time.Time
}

// WindowStore defines the interface for persisting fixed counting windows.
//
// Implementations can use in-memory storage, Postgres, or other backends.
// All methods must be thread-safe.
type WindowStore interface {
	// CheckAndIncrement atomically resolves the active window for the key
	// and admits or rejects one request against it.
	//
	// The check and the increment MUST happen as a single atomic operation
	// so that concurrent requests cannot both observe count = limit-1 and
	// both be admitted.
	//
	// Behavior:
	//   - No active window at `now`: open a new window [now, now+window)
	//     with count 1 and admit.
	//   - Active window with count < limit: increment and admit.
	//   - Active window with count >= limit: leave the counter untouched
	//     and reject.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - key: Unique identifier (e.g., IP address, user ID)
	//   - kind: Identifier kind stored alongside the key ("IP", "USER")
	//   - now: Instant of the request
	//   - window: Window length
	//   - limit: Maximum number of requests allowed per window
	//
	// Returns the resulting window state, whether the request was admitted,
	// and an error if the operation fails.
	CheckAndIncrement(ctx context.Context, key, kind string, now time.Time, window time.Duration, limit int) (WindowState, bool, error)
}

// RateLimitMetrics defines the interface for recording rate limiting metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type RateLimitMetrics interface {
	// RecordAllowed records a rate limit check that admitted the request.
	//
	// Parameters:
	//   - limiterType: Type of rate limiter (e.g., "ip", "user")
	//   - endpoint: API endpoint being accessed
	RecordAllowed(limiterType, endpoint string)

	// RecordDenied records a rate limit violation (request denied).
	//
	// Parameters:
	//   - limiterType: Type of rate limiter (e.g., "ip", "user")
	//   - endpoint: API endpoint being accessed
	RecordDenied(limiterType, endpoint string)

	// RecordFailOpen records a check that was admitted because the store
	// was unavailable, not because the limit allowed it.
	//
	// Parameters:
	//   - limiterType: Type of rate limiter (e.g., "ip", "user")
	RecordFailOpen(limiterType string)

	// RecordCheckDuration records the duration of a rate limit check operation.
	//
	// Parameters:
	//   - limiterType: Type of rate limiter (e.g., "ip", "user")
	//   - duration: Time taken to perform the rate limit check
	RecordCheckDuration(limiterType string, duration time.Duration)

	// RecordCircuitState records the current state of the store circuit breaker.
	//
	// Parameters:
	//   - limiterType: Type of rate limiter (e.g., "ip", "user")
	//   - state: Circuit state (e.g., "closed", "open", "half-open")
	RecordCircuitState(limiterType, state string)

	// SetActiveKeys records the current number of active keys in the store.
	//
	// Parameters:
	//   - limiterType: Type of rate limiter (e.g., "ip", "user")
	//   - count: Number of active keys
	SetActiveKeys(limiterType string, count int)
}

// Clock provides an abstraction for time operations to enable testing.
//
// This interface allows for dependency injection of time functions,
// making it easy to test time-dependent behavior with fake clocks.
type Clock interface {
	// Now returns the current time.
	//
	// Production implementations should return time.Now().
	// Test implementations can return fixed or controlled times.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
