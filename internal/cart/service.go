package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type productCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Service exposes session cart operations.
type Service interface {
	Add(ctx context.Context, sessionID string, productID uuid.UUID) (int, error)
	Remove(ctx context.Context, sessionID string, productID uuid.UUID) error
	List(ctx context.Context, sessionID string) (*View, error)
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}

type service struct {
	store   Store
	catalog productCatalog
}

// NewService builds a cart service over the store and catalog.
func NewService(store Store, catalog productCatalog) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	return &service{store: store, catalog: catalog}, nil
}

func (s *service) Add(ctx context.Context, sessionID string, productID uuid.UUID) (int, error) {
	if err := requireSession(sessionID); err != nil {
		return 0, err
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	qty, err := s.store.Increment(ctx, sessionID, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add to cart")
	}
	return qty, nil
}

func (s *service) Remove(ctx context.Context, sessionID string, productID uuid.UUID) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, sessionID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove from cart")
	}
	return nil
}

// List prices the cart with current catalog data. Entries whose product no
// longer exists are left out of the lines and the total.
func (s *service) List(ctx context.Context, sessionID string) (*View, error) {
	entries, err := s.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	view := &View{Lines: []Line{}, Total: decimal.Zero}
	if len(entries) == 0 {
		return view, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	products, err := s.catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		p, ok := products[e.ProductID]
		if !ok {
			continue
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
		view.Lines = append(view.Lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			ImageURL:  p.ImageURL,
			UnitPrice: p.Price,
			Quantity:  e.Quantity,
			Subtotal:  subtotal,
		})
		view.ItemCount += e.Quantity
		view.Total = view.Total.Add(subtotal)
	}
	return view, nil
}

func (s *service) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	entries, err := s.store.Entries(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return entries, nil
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "session id is required")
	}
	return nil
}
