package cart

import (
	"context"

	"github.com/google/uuid"
)

// Entry is one product line of a session cart. Carts hold no prices.
type Entry struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Store keeps per-session carts. Entries come back in first-add order and a
// product appears at most once per cart.
type Store interface {
	Increment(ctx context.Context, sessionID string, productID uuid.UUID) (int, error)
	Remove(ctx context.Context, sessionID string, productID uuid.UUID) error
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}
