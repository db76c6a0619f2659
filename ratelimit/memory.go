package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

type counterEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the single-process CounterStore: a mutex-guarded map with
// a background sweep that garbage-collects expired windows, bounding memory
// under unbounded key churn (spoofed client identifiers). It cannot fail.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*counterEntry

	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates the store and starts its sweep goroutine.
// A non-positive sweepInterval uses the five-minute default. Call [Stop]
// on shutdown.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	s := &MemoryStore{
		entries: make(map[string]*counterEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go s.janitor(sweepInterval)
	return s
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		// first touch, or the prior window is stale: reset
		entry = &counterEntry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = entry
		return entry.count, entry.resetAt, nil
	}

	entry.count++
	return entry.count, entry.resetAt, nil
}

// Stop terminates the sweep goroutine. Incr remains usable afterwards; only
// garbage collection stops.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep removes entries whose window has passed. It holds the same mutex as
// Incr, but only for one pass over the map, so in-flight admissions block
// for a bounded, small duration.
func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if !now.Before(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
