package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryCart struct {
	entries []Entry
	touched time.Time
}

const sweepEvery = time.Minute

// MemoryStore keeps carts in process. Carts idle for longer than the TTL are
// dropped on their next access, and Increment sweeps every idle cart at most
// once per sweepEvery.
type MemoryStore struct {
	mu        sync.Mutex
	carts     map[string]*memoryCart
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryStore returns an empty in-process cart store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{carts: make(map[string]*memoryCart), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Increment(_ context.Context, sessionID string, productID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	c := s.live(sessionID)
	if c == nil {
		c = &memoryCart{}
		s.carts[sessionID] = c
	}
	c.touched = s.now()
	for i := range c.entries {
		if c.entries[i].ProductID == productID {
			c.entries[i].Quantity++
			return c.entries[i].Quantity, nil
		}
	}
	c.entries = append(c.entries, Entry{ProductID: productID, Quantity: 1})
	return 1, nil
}

func (s *MemoryStore) Remove(_ context.Context, sessionID string, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(sessionID)
	if c == nil {
		return nil
	}
	c.touched = s.now()
	for i := range c.entries {
		if c.entries[i].ProductID == productID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(sessionID)
	if c == nil {
		return []Entry{}, nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

// live returns the cart for sessionID, evicting it when idle past the TTL.
// Callers hold s.mu.
func (s *MemoryStore) live(sessionID string) *memoryCart {
	c, ok := s.carts[sessionID]
	if !ok {
		return nil
	}
	if s.idle(c, s.now()) {
		delete(s.carts, sessionID)
		return nil
	}
	return c
}

// sweep drops idle carts once per sweepEvery. Callers hold s.mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	if s.ttl <= 0 || now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(sweepEvery)
	for id, c := range s.carts {
		if s.idle(c, now) {
			delete(s.carts, id)
		}
	}
}

func (s *MemoryStore) idle(c *memoryCart, now time.Time) bool {
	return s.ttl > 0 && now.Sub(c.touched) >= s.ttl
}
