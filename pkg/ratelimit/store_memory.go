package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryWindowStore is a thread-safe in-memory implementation of
// WindowStore.
//
// Each key holds at most one window: the currently (or most recently)
// active one. An expired window is overwritten in place by the next
// request, so memory stays proportional to the number of active keys.
// A maximum key limit bounds worst-case growth; when it is reached,
// expired entries are purged and, if that is not enough, the entry with
// the oldest window end is evicted.
//
// This store is suitable for single-process deployments and tests. The
// Postgres-backed store should be used when limits must hold across
// replicas or survive restarts.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	maxKeys int
}

// memoryWindow holds one key's window state.
type memoryWindow struct {
	count       int
	windowStart time.Time
	windowEnd   time.Time
}

// InMemoryStoreConfig holds configuration for InMemoryWindowStore.
type InMemoryStoreConfig struct {
	// MaxKeys is the maximum number of keys to store in memory.
	// Default: 10000
	MaxKeys int
}

// NewInMemoryWindowStore creates a new in-memory window store with the
// given configuration.
func NewInMemoryWindowStore(config InMemoryStoreConfig) *InMemoryWindowStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}

	return &InMemoryWindowStore{
		windows: make(map[string]*memoryWindow),
		maxKeys: config.MaxKeys,
	}
}

// CheckAndIncrement atomically resolves the active window for the key and
// admits or rejects one request against it.
//
// The whole operation runs under a single lock acquisition, so concurrent
// requests against the same key serialize: with limit 1, exactly one of N
// concurrent requests is admitted.
func (s *InMemoryWindowStore) CheckAndIncrement(ctx context.Context, key, kind string, now time.Time, window time.Duration, limit int) (WindowState, bool, error) {
	if err := ctx.Err(); err != nil {
		return WindowState{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mapKey := kind + ":" + key

	w, exists := s.windows[mapKey]
	if !exists || !now.Before(w.windowEnd) {
		// No window, or the previous one has ended (a request at exactly
		// windowEnd starts over). Open a fresh window with this request
		// as its first count.
		if !exists && len(s.windows) >= s.maxKeys {
			s.makeRoom(now)
		}

		w = &memoryWindow{
			count:       1,
			windowStart: now,
			windowEnd:   now.Add(window),
		}
		s.windows[mapKey] = w

		return s.stateOf(w), true, nil
	}

	if w.count >= limit {
		// Rejected requests never advance the counter.
		return s.stateOf(w), false, nil
	}

	w.count++
	return s.stateOf(w), true, nil
}

// stateOf snapshots a window entry. Must be called while holding the lock.
func (s *InMemoryWindowStore) stateOf(w *memoryWindow) WindowState {
	return WindowState{
		Count:       w.count,
		WindowStart: w.windowStart,
		WindowEnd:   w.windowEnd,
	}
}

// makeRoom frees capacity for one new key. Expired entries are purged
// first; if every entry is still active, the one whose window ends
// soonest is evicted.
//
// Must be called while holding the lock.
func (s *InMemoryWindowStore) makeRoom(now time.Time) {
	purged := false
	for key, w := range s.windows {
		if !now.Before(w.windowEnd) {
			delete(s.windows, key)
			purged = true
		}
	}
	if purged {
		return
	}

	var oldestKey string
	var oldestEnd time.Time
	for key, w := range s.windows {
		if oldestKey == "" || w.windowEnd.Before(oldestEnd) {
			oldestKey = key
			oldestEnd = w.windowEnd
		}
	}
	if oldestKey != "" {
		delete(s.windows, oldestKey)
	}
}

// PurgeExpired removes every window that ended at or before the given
// instant and returns the number removed.
func (s *InMemoryWindowStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.windowEnd) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// KeyCount returns the number of keys currently in the store.
func (s *InMemoryWindowStore) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
