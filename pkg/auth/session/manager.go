package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no live record.
var ErrNotFound = errors.New("session not found")

// Store is the key/value surface a session backend must provide.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SessionKey(sessionID string) string
}

// Record is the server-side state of a client session.
type Record struct {
	ID        string     `json:"id"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Authenticated reports whether an account is bound to the session.
func (r *Record) Authenticated() bool {
	return r != nil && r.AccountID != nil && *r.AccountID != uuid.Nil
}

// Manager creates sessions and binds accounts to them.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager constructs a session manager over the provided store.
func NewManager(store Store, cfg config.SessionConfig) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	ttl := cfg.TTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Create starts a new anonymous session.
func (m *Manager) Create(ctx context.Context) (*Record, error) {
	rec := &Record{ID: NewID(), CreatedAt: m.now().UTC()}
	if err := m.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Lookup loads the session record for id.
func (m *Manager) Lookup(ctx context.Context, id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	raw, err := m.store.Get(ctx, m.store.SessionKey(id))
	if err != nil {
		return nil, wrapNotFound(err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

// Bind attaches accountID to the session.
func (m *Manager) Bind(ctx context.Context, id string, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return fmt.Errorf("account id is required")
	}
	rec, err := m.Lookup(ctx, id)
	if err != nil {
		return err
	}
	rec.AccountID = &accountID
	return m.save(ctx, rec)
}

// Unbind clears the bound account while keeping the session alive.
func (m *Manager) Unbind(ctx context.Context, id string) error {
	rec, err := m.Lookup(ctx, id)
	if err != nil {
		return err
	}
	rec.AccountID = nil
	return m.save(ctx, rec)
}

// Destroy deletes the session record.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.store.SessionKey(id))
}

// TTL is the lifetime applied on every write.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) save(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.SessionKey(rec.ID), string(payload), m.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// NewID produces the identifier used as the token jti and store key.
func NewID() string {
	return uuid.NewString()
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) || errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return err
}
