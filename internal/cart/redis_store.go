package cart

import (
	"context"
	"fmt"
	"time"

	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
)

type orderedHash interface {
	IncrOrderedField(ctx context.Context, key, field string, delta int64, ttl time.Duration) (int64, error)
	RemoveOrderedField(ctx context.Context, key, field string) error
	OrderedFields(ctx context.Context, key string) ([]pkgredis.OrderedField, error)
	DelOrdered(ctx context.Context, key string) error
	CartKey(sessionID string) string
}

// RedisStore keeps each cart as a hash of product id to quantity plus a
// sorted set of first-add times. Both keys share a sliding TTL.
type RedisStore struct {
	client orderedHash
	ttl    time.Duration
}

// NewRedisStore builds a cart store over the redis client.
func NewRedisStore(client orderedHash, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Increment(ctx context.Context, sessionID string, productID uuid.UUID) (int, error) {
	qty, err := s.client.IncrOrderedField(ctx, s.client.CartKey(sessionID), productID.String(), 1, s.ttl)
	if err != nil {
		return 0, fmt.Errorf("increment cart entry: %w", err)
	}
	return int(qty), nil
}

func (s *RedisStore) Remove(ctx context.Context, sessionID string, productID uuid.UUID) error {
	if err := s.client.RemoveOrderedField(ctx, s.client.CartKey(sessionID), productID.String()); err != nil {
		return fmt.Errorf("remove cart entry: %w", err)
	}
	return nil
}

// Entries skips fields that are not product ids or carry a non-positive
// quantity.
func (s *RedisStore) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	fields, err := s.client.OrderedFields(ctx, s.client.CartKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	out := make([]Entry, 0, len(fields))
	for _, f := range fields {
		id, err := uuid.Parse(f.Field)
		if err != nil || f.Value <= 0 {
			continue
		}
		out = append(out, Entry{ProductID: id, Quantity: int(f.Value)})
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.DelOrdered(ctx, s.client.CartKey(sessionID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
