package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// FixedWindowLimiterConfig holds the dependencies and settings for a
// FixedWindowLimiter.
type FixedWindowLimiterConfig struct {
	// Store persists counting windows. Required.
	Store WindowStore

	// Kind is stored alongside every window key ("IP" or "USER").
	Kind string

	// LimiterType labels decisions, logs, and metrics ("ip" or "user").
	LimiterType string

	// Clock provides time operations for testing.
	// Default: SystemClock
	Clock Clock

	// Metrics for recording check outcomes.
	// Default: NoOpMetrics
	Metrics RateLimitMetrics

	// Breaker protects store calls. Optional; when nil, store errors still
	// fail open but every request pays the full store call.
	Breaker *CircuitBreaker

	// FailOpenLogEvery throttles the operational error log emitted on
	// fail-open admits, so a dead store does not flood the log at request
	// rate.
	// Default: one log per 10 seconds
	FailOpenLogEvery time.Duration
}

// FixedWindowLimiter checks requests against fixed counting windows held in
// a WindowStore.
//
// Windows are anchored to first use: the first request for an idle key opens
// a window of the configured length, and the window's counter is shared by
// every request until it ends. A request arriving at or after the window end
// opens a fresh window.
//
// The limiter never returns an error from Check. When the store is
// unreachable the request is admitted (fail-open), the outcome is recorded
// in metrics, and an operational error is logged at a throttled rate.
// Enforcement outages degrade protection, never availability.
type FixedWindowLimiter struct {
	store       WindowStore
	kind        string
	limiterType string
	clock       Clock
	metrics     RateLimitMetrics
	breaker     *CircuitBreaker
	failOpenLog *rate.Limiter
}

// NewFixedWindowLimiter creates a limiter from the given configuration,
// filling in defaults for any nil dependencies.
func NewFixedWindowLimiter(config FixedWindowLimiterConfig) *FixedWindowLimiter {
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}
	logEvery := config.FailOpenLogEvery
	if logEvery <= 0 {
		logEvery = 10 * time.Second
	}

	return &FixedWindowLimiter{
		store:       config.Store,
		kind:        config.Kind,
		limiterType: config.LimiterType,
		clock:       config.Clock,
		metrics:     config.Metrics,
		breaker:     config.Breaker,
		failOpenLog: rate.NewLimiter(rate.Every(logEvery), 1),
	}
}

// Check admits or rejects one request for the given key.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - key: Unique identifier (e.g., IP address, user ID)
//   - endpoint: Request path, used only for metrics labels
//   - limit: Maximum requests per window; UnlimitedLimit bypasses the store
//   - window: Window length
//
// Returns a Decision; never an error. Store failures produce an allowed
// decision with FailOpen set.
func (l *FixedWindowLimiter) Check(ctx context.Context, key, endpoint string, limit int, window time.Duration) *Decision {
	now := l.clock.Now()

	// Unlimited subjects bypass the store entirely: no window row is
	// created and the remaining count stays pinned at the sentinel.
	if limit >= UnlimitedLimit {
		l.metrics.RecordAllowed(l.limiterType, endpoint)
		return NewAllowedDecision(key, l.limiterType, UnlimitedLimit, UnlimitedLimit, now.Add(window), now)
	}

	start := time.Now()
	state, allowed, err := l.checkStore(ctx, key, now, window, limit)
	l.metrics.RecordCheckDuration(l.limiterType, time.Since(start))

	if err != nil {
		l.failOpen(key, err)
		return NewFailOpenDecision(key, l.limiterType, limit, now)
	}

	if !allowed {
		l.metrics.RecordDenied(l.limiterType, endpoint)
		return NewDeniedDecision(key, l.limiterType, limit, state.WindowEnd, now)
	}

	l.metrics.RecordAllowed(l.limiterType, endpoint)
	remaining := limit - state.Count
	if remaining < 0 {
		remaining = 0
	}
	return NewAllowedDecision(key, l.limiterType, limit, remaining, state.WindowEnd, now)
}

// checkStore runs the atomic store operation, through the circuit breaker
// when one is configured.
func (l *FixedWindowLimiter) checkStore(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (WindowState, bool, error) {
	if l.breaker == nil {
		return l.store.CheckAndIncrement(ctx, key, l.kind, now, window, limit)
	}

	type result struct {
		state   WindowState
		allowed bool
	}

	res, err := l.breaker.Execute(func() (interface{}, error) {
		state, allowed, err := l.store.CheckAndIncrement(ctx, key, l.kind, now, window, limit)
		if err != nil {
			return nil, err
		}
		return result{state: state, allowed: allowed}, nil
	})
	if err != nil {
		return WindowState{}, false, err
	}

	r := res.(result)
	return r.state, r.allowed, nil
}

// failOpen records a fail-open admit and logs the store fault at a
// throttled rate.
func (l *FixedWindowLimiter) failOpen(key string, err error) {
	l.metrics.RecordFailOpen(l.limiterType)

	if l.failOpenLog.Allow() {
		slog.Error("rate limit store unavailable, failing open",
			slog.String("limiter_type", l.limiterType),
			slog.String("key", key),
			slog.String("circuit_state", l.circuitState()),
			slog.Any("error", err),
		)
	}
}

func (l *FixedWindowLimiter) circuitState() string {
	if l.breaker == nil {
		return "none"
	}
	return l.breaker.State().String()
}
