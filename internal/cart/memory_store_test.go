package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryStoreIncrementKeepsFirstAddOrder(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for _, id := range []uuid.UUID{a, b, a} {
		if _, err := s.Increment(ctx, "sess", id); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	entries, err := s.Entries(ctx, "sess")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ProductID != a || entries[0].Quantity != 2 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].ProductID != b || entries[1].Quantity != 1 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestMemoryStoreSessionsAreIsolated(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if _, err := s.Increment(ctx, "one", uuid.New()); err != nil {
		t.Fatalf("increment: %v", err)
	}
	entries, err := s.Entries(ctx, "two")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty cart for other session, got %v", entries)
	}
}

func TestMemoryStoreRemoveAndClear(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	_, _ = s.Increment(ctx, "sess", a)
	_, _ = s.Increment(ctx, "sess", b)

	if err := s.Remove(ctx, "sess", a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "sess", a); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if err := s.Remove(ctx, "missing", a); err != nil {
		t.Fatalf("remove on unknown session: %v", err)
	}
	entries, _ := s.Entries(ctx, "sess")
	if len(entries) != 1 || entries[0].ProductID != b {
		t.Fatalf("expected only b left, got %v", entries)
	}

	if err := s.Clear(ctx, "sess"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = s.Entries(ctx, "sess")
	if len(entries) != 0 {
		t.Fatalf("expected cleared cart, got %v", entries)
	}
}

func TestMemoryStoreExpiresIdleCarts(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = s.Increment(ctx, "sess", uuid.New())
	now = now.Add(59 * time.Second)
	if entries, _ := s.Entries(ctx, "sess"); len(entries) != 1 {
		t.Fatalf("expected cart to survive before ttl, got %v", entries)
	}

	now = now.Add(2 * time.Minute)
	if entries, _ := s.Entries(ctx, "sess"); len(entries) != 0 {
		t.Fatalf("expected cart to expire, got %v", entries)
	}
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "sess", id)
		}()
	}
	wg.Wait()

	entries, _ := s.Entries(ctx, "sess")
	if len(entries) != 1 || entries[0].Quantity != 50 {
		t.Fatalf("expected single entry with quantity 50, got %v", entries)
	}
}

func TestMemoryStoreSweepsAbandonedCarts(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 100; i++ {
		if _, err := s.Increment(ctx, uuid.NewString(), id); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	now = now.Add(2 * time.Hour)
	if _, err := s.Increment(ctx, "fresh", id); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if len(s.carts) != 1 {
		t.Fatalf("expected idle carts to be swept, %d held", len(s.carts))
	}
	if entries, _ := s.Entries(ctx, "fresh"); len(entries) != 1 {
		t.Fatalf("fresh cart lost in sweep: %v", entries)
	}
}
