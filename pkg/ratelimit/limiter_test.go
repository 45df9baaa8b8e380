package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// failingStore always returns an error, simulating a store outage.
type failingStore struct {
	calls int
}

func (s *failingStore) CheckAndIncrement(ctx context.Context, key, kind string, now time.Time, window time.Duration, limit int) (WindowState, bool, error) {
	s.calls++
	return WindowState{}, false, errors.New("connection refused")
}

// countingMetrics records metric calls for assertions.
type countingMetrics struct {
	NoOpMetrics
	allowed  int
	denied   int
	failOpen int
}

func (m *countingMetrics) RecordAllowed(limiterType, endpoint string) { m.allowed++ }
func (m *countingMetrics) RecordDenied(limiterType, endpoint string)  { m.denied++ }
func (m *countingMetrics) RecordFailOpen(limiterType string)          { m.failOpen++ }

func newTestLimiter(store WindowStore, clock Clock, metrics RateLimitMetrics) *FixedWindowLimiter {
	return NewFixedWindowLimiter(FixedWindowLimiterConfig{
		Store:       store,
		Kind:        "IP",
		LimiterType: "ip",
		Clock:       clock,
		Metrics:     metrics,
	})
}

func TestFixedWindowLimiter_AllowAndDeny(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	metrics := &countingMetrics{}
	limiter := newTestLimiter(store, clock, metrics)

	ctx := context.Background()

	// 3 requests against limit 3: all admitted, remaining counts down.
	for i := 0; i < 3; i++ {
		d := limiter.Check(ctx, "192.0.2.1", "/api/items", 3, time.Minute)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 3 - (i + 1); d.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, d.Remaining, want)
		}
		if !d.ResetAt.Equal(now.Add(time.Minute)) {
			t.Errorf("ResetAt = %v, want %v", d.ResetAt, now.Add(time.Minute))
		}
	}

	// Fourth request is denied with the window end as the reset time.
	clock.Advance(10 * time.Second)
	d := limiter.Check(ctx, "192.0.2.1", "/api/items", 3, time.Minute)
	if d.Allowed {
		t.Fatal("fourth request should be denied")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter != 50*time.Second {
		t.Errorf("RetryAfter = %v, want 50s", d.RetryAfter)
	}

	if metrics.allowed != 3 || metrics.denied != 1 {
		t.Errorf("metrics allowed=%d denied=%d, want 3/1", metrics.allowed, metrics.denied)
	}
}

func TestFixedWindowLimiter_WindowReset(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	limiter := newTestLimiter(store, clock, nil)

	ctx := context.Background()

	if d := limiter.Check(ctx, "u1", "/", 1, time.Minute); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	if d := limiter.Check(ctx, "u1", "/", 1, time.Minute); d.Allowed {
		t.Fatal("second request in window should be denied")
	}

	// At exactly the window end a fresh window opens.
	clock.Set(now.Add(time.Minute))
	d := limiter.Check(ctx, "u1", "/", 1, time.Minute)
	if !d.Allowed {
		t.Fatal("request at window end should open a fresh window")
	}
	if !d.ResetAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, now.Add(2*time.Minute))
	}
}

func TestFixedWindowLimiter_UnlimitedBypassesStore(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	store := &failingStore{}
	metrics := &countingMetrics{}
	limiter := newTestLimiter(store, clock, metrics)

	d := limiter.Check(context.Background(), "superadmin", "/", UnlimitedLimit, time.Minute)
	if !d.Allowed {
		t.Fatal("unlimited check should always be allowed")
	}
	if !d.Unlimited() {
		t.Error("decision should report as unlimited")
	}
	if d.Remaining != UnlimitedLimit {
		t.Errorf("Remaining = %d, want sentinel %d", d.Remaining, UnlimitedLimit)
	}
	if store.calls != 0 {
		t.Errorf("store calls = %d, want 0 (unlimited must not touch the store)", store.calls)
	}
	if d.FailOpen {
		t.Error("unlimited admit is not a fail-open admit")
	}
	if metrics.allowed != 1 {
		t.Errorf("metrics allowed = %d, want 1", metrics.allowed)
	}
}

func TestFixedWindowLimiter_FailOpenOnStoreError(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	store := &failingStore{}
	metrics := &countingMetrics{}
	limiter := newTestLimiter(store, clock, metrics)

	d := limiter.Check(context.Background(), "192.0.2.1", "/", 100, time.Minute)
	if !d.Allowed {
		t.Fatal("store outage must admit the request (fail-open)")
	}
	if !d.FailOpen {
		t.Error("decision should be flagged as fail-open")
	}
	if metrics.failOpen != 1 {
		t.Errorf("metrics failOpen = %d, want 1", metrics.failOpen)
	}
	if metrics.denied != 0 {
		t.Errorf("metrics denied = %d, want 0", metrics.denied)
	}
}

func TestFixedWindowLimiter_BreakerStopsHammeringDeadStore(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	store := &failingStore{}
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		LimiterType:      "ip",
	})

	limiter := NewFixedWindowLimiter(FixedWindowLimiterConfig{
		Store:       store,
		Kind:        "IP",
		LimiterType: "ip",
		Clock:       clock,
		Breaker:     breaker,
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d := limiter.Check(ctx, "192.0.2.1", "/", 100, time.Minute)
		if !d.Allowed || !d.FailOpen {
			t.Fatalf("request %d: expected fail-open admit, got %+v", i+1, d)
		}
	}

	if !breaker.IsOpen() {
		t.Error("breaker should be open after consecutive store failures")
	}
	// Once the circuit opened after 3 failures, later checks fail fast
	// without reaching the store.
	if store.calls != 3 {
		t.Errorf("store calls = %d, want 3 (breaker should absorb the rest)", store.calls)
	}
}

func TestFixedWindowLimiter_RecoversAfterOutage(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)

	// Store that fails a fixed number of times, then delegates to a
	// working in-memory store.
	healthy := NewInMemoryWindowStore(InMemoryStoreConfig{})
	flaky := &flakyStore{failures: 2, inner: healthy}
	limiter := newTestLimiter(flaky, clock, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if d := limiter.Check(ctx, "u1", "/", 5, time.Minute); !d.FailOpen {
			t.Fatalf("request %d should fail open", i+1)
		}
	}

	d := limiter.Check(ctx, "u1", "/", 5, time.Minute)
	if d.FailOpen {
		t.Fatal("store recovered, check should be enforced again")
	}
	if d.Remaining != 4 {
		t.Errorf("Remaining = %d, want 4 (fail-open admits are not counted)", d.Remaining)
	}
}

type flakyStore struct {
	failures int
	inner    WindowStore
}

func (s *flakyStore) CheckAndIncrement(ctx context.Context, key, kind string, now time.Time, window time.Duration, limit int) (WindowState, bool, error) {
	if s.failures > 0 {
		s.failures--
		return WindowState{}, false, errors.New("i/o timeout")
	}
	return s.inner.CheckAndIncrement(ctx, key, kind, now, window, limit)
}
