// Package ratelimit implements fixed-window request throttling over an
// injected counter store, so a process-local map and a shared Redis
// deployment are interchangeable at the call sites.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore is a key→counter abstraction with TTL semantics. Incr must be
// atomic per key: concurrent callers may never both observe the
// pre-increment count.
type CounterStore interface {
	// Incr increments key, attaching ttl when the key is created, and
	// returns the new count and the remaining ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
	// Get returns the current count and remaining ttl without mutating.
	// A missing key reads as zero.
	Get(ctx context.Context, key string) (int64, time.Duration, error)
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local CounterStore. Entries are reaped lazily on
// access and in bulk once the map grows past a threshold.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

const memorySweepThreshold = 4096

// Incr implements CounterStore.
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = &memoryEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = entry
	}
	entry.count++

	if len(s.entries) > memorySweepThreshold {
		s.sweepLocked(now)
	}
	return entry.count, entry.expiresAt.Sub(now), nil
}

// Get implements CounterStore.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		return 0, 0, nil
	}
	return entry.count, entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
