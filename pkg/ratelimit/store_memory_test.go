package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// MockClock implements Clock interface for testing
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func TestInMemoryWindowStore_FirstRequestOpensWindow(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	state, allowed, err := store.CheckAndIncrement(context.Background(), "192.0.2.1", "IP", now, time.Minute, 100)
	if err != nil {
		t.Fatalf("CheckAndIncrement() error = %v", err)
	}
	if !allowed {
		t.Error("first request should be allowed")
	}
	if state.Count != 1 {
		t.Errorf("Count = %d, want 1", state.Count)
	}
	if !state.WindowStart.Equal(now) {
		t.Errorf("WindowStart = %v, want %v", state.WindowStart, now)
	}
	if !state.WindowEnd.Equal(now.Add(time.Minute)) {
		t.Errorf("WindowEnd = %v, want %v", state.WindowEnd, now.Add(time.Minute))
	}
}

func TestInMemoryWindowStore_LimitBoundary(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Requests 1..limit are admitted, request limit+1 is rejected.
	const limit = 5
	for i := 1; i <= limit; i++ {
		state, allowed, err := store.CheckAndIncrement(ctx, "u1", "USER", now, time.Minute, limit)
		if err != nil {
			t.Fatalf("request %d: error = %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if state.Count != i {
			t.Errorf("request %d: Count = %d, want %d", i, state.Count, i)
		}
	}

	state, allowed, err := store.CheckAndIncrement(ctx, "u1", "USER", now.Add(time.Second), time.Minute, limit)
	if err != nil {
		t.Fatalf("over-limit request: error = %v", err)
	}
	if allowed {
		t.Error("request over the limit should be rejected")
	}
	if state.Count != limit {
		t.Errorf("rejected request must not advance the counter: Count = %d, want %d", state.Count, limit)
	}
}

func TestInMemoryWindowStore_WindowBoundaries(t *testing.T) {
	// Fixed windows anchored to first use: [start, start+window). These
	// cases pin down the boundary behavior at exactly the window end.
	start := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		second      time.Time
		wantAllowed bool
		wantCount   int
		wantFresh   bool
	}{
		{
			name:        "just before window end stays in window",
			second:      start.Add(time.Minute - time.Millisecond),
			wantAllowed: false,
			wantCount:   1,
		},
		{
			name:        "exactly at window end opens fresh window",
			second:      start.Add(time.Minute),
			wantAllowed: true,
			wantCount:   1,
			wantFresh:   true,
		},
		{
			name:        "after window end opens fresh window",
			second:      start.Add(time.Minute + time.Millisecond),
			wantAllowed: true,
			wantCount:   1,
			wantFresh:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryWindowStore(InMemoryStoreConfig{})
			ctx := context.Background()

			// Exhaust a limit-1 window at its first instant.
			if _, allowed, err := store.CheckAndIncrement(ctx, "ip1", "IP", start, time.Minute, 1); err != nil || !allowed {
				t.Fatalf("setup request: allowed=%v err=%v", allowed, err)
			}

			state, allowed, err := store.CheckAndIncrement(ctx, "ip1", "IP", tt.second, time.Minute, 1)
			if err != nil {
				t.Fatalf("CheckAndIncrement() error = %v", err)
			}
			if allowed != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", allowed, tt.wantAllowed)
			}
			if state.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", state.Count, tt.wantCount)
			}
			if tt.wantFresh && !state.WindowStart.Equal(tt.second) {
				t.Errorf("fresh window should start at request time: WindowStart = %v, want %v", state.WindowStart, tt.second)
			}
		})
	}
}

func TestInMemoryWindowStore_KeysAreIndependent(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, allowed, _ := store.CheckAndIncrement(ctx, "a", "IP", now, time.Minute, 1); !allowed {
		t.Fatal("first key should be allowed")
	}
	if _, allowed, _ := store.CheckAndIncrement(ctx, "a", "IP", now, time.Minute, 1); allowed {
		t.Error("first key should now be at its limit")
	}
	if _, allowed, _ := store.CheckAndIncrement(ctx, "b", "IP", now, time.Minute, 1); !allowed {
		t.Error("second key must not be affected by the first key's window")
	}
	// Same identifier under a different kind is a separate window.
	if _, allowed, _ := store.CheckAndIncrement(ctx, "a", "USER", now, time.Minute, 1); !allowed {
		t.Error("same identifier with different kind must have its own window")
	}
}

func TestInMemoryWindowStore_ConcurrentSingleAdmit(t *testing.T) {
	// With limit 1, exactly one of N concurrent requests may be admitted.
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, allowed, err := store.CheckAndIncrement(ctx, "contended", "IP", now, time.Minute, 1)
			if err != nil {
				t.Errorf("CheckAndIncrement() error = %v", err)
				return
			}
			if allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}
}

func TestInMemoryWindowStore_CancelledContext(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.CheckAndIncrement(ctx, "x", "IP", time.Now(), time.Minute, 10)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestInMemoryWindowStore_MaxKeysEviction(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryStoreConfig{MaxKeys: 2})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, allowed, _ := store.CheckAndIncrement(ctx, "a", "IP", now, time.Minute, 10); !allowed {
		t.Fatal("key a should be admitted")
	}
	if _, allowed, _ := store.CheckAndIncrement(ctx, "b", "IP", now, 2*time.Minute, 10); !allowed {
		t.Fatal("key b should be admitted")
	}

	// Store is full and neither window has expired; the entry ending
	// soonest (a) is evicted to make room.
	if _, allowed, _ := store.CheckAndIncrement(ctx, "c", "IP", now, time.Minute, 10); !allowed {
		t.Fatal("key c should be admitted after eviction")
	}
	if got := store.KeyCount(); got != 2 {
		t.Errorf("KeyCount() = %d, want 2", got)
	}
}

func TestInMemoryWindowStore_PurgeExpired(t *testing.T) {
	store := NewInMemoryWindowStore(InMemoryStoreConfig{})
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store.CheckAndIncrement(ctx, "old", "IP", now, time.Minute, 10)
	store.CheckAndIncrement(ctx, "fresh", "IP", now.Add(30*time.Second), 2*time.Minute, 10)

	removed := store.PurgeExpired(now.Add(time.Minute))
	if removed != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", removed)
	}
	if got := store.KeyCount(); got != 1 {
		t.Errorf("KeyCount() = %d, want 1", got)
	}

	// Purging again at the same instant removes nothing.
	if removed := store.PurgeExpired(now.Add(time.Minute)); removed != 0 {
		t.Errorf("second PurgeExpired() = %d, want 0", removed)
	}
}
