package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// sweepEvery bounds how often a write scans the whole map for expired records.
const sweepEvery = time.Minute

// MemoryStore keeps session records in process. Records vanish on restart.
// Expired records are dropped when read and by a sweep run from Set at most
// once per sweepEvery, so sessions that are never read again are reclaimed.
type MemoryStore struct {
	mu        sync.Mutex
	data      map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryStore returns an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	entry := memoryEntry{value: fmt.Sprint(value)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.data[key] = entry
	return nil
}

// sweep drops expired records once per sweepEvery. Callers hold s.mu.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(sweepEvery)
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
		}
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	if entry.expired(s.now()) {
		delete(s.data, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) SessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Ping satisfies the readiness checker.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
