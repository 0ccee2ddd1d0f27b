package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository interface {
	List(ctx context.Context, filters Filters) ([]models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	CreateBatch(ctx context.Context, products []models.Product) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog reads to the cart, checkout and HTTP layers.
type Service struct {
	repo repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the catalog service.
func NewService(repo *Repository, tx txRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

// List returns the products matching filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]models.Product, error) {
	products, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return products, nil
}

// Featured returns the first products of the catalog for the home page.
func (s *Service) Featured(ctx context.Context) ([]models.Product, error) {
	return s.List(ctx, Filters{Limit: FeaturedLimit})
}

// Get returns the product for id, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "get product")
	}
	return product, nil
}

// Resolve returns the products that exist among ids.
func (s *Service) Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve products")
	}
	return products, nil
}

// Categories lists the distinct category names.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	return categories, nil
}

// SeedDefaults inserts the starter catalog when the products table is empty.
// It reports how many rows were inserted.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		n, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		products := DefaultProducts(s.now().UTC())
		if err := repo.CreateBatch(ctx, products); err != nil {
			return err
		}
		inserted = len(products)
		return nil
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seed catalog")
	}
	if inserted > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", inserted), "catalog seeded")
	}
	return inserted, nil
}
