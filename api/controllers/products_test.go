package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type stubCatalog struct {
	products   []models.Product
	gotFilters catalog.Filters
	err        error
}

func (s *stubCatalog) List(_ context.Context, filters catalog.Filters) ([]models.Product, error) {
	s.gotFilters = filters
	return s.products, s.err
}

func (s *stubCatalog) Featured(context.Context) ([]models.Product, error) {
	return s.products, s.err
}

func (s *stubCatalog) Get(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i], nil
		}
	}
	return nil, nil
}

func (s *stubCatalog) Categories(context.Context) ([]string, error) {
	return nil, s.err
}

func sampleProducts() []models.Product {
	return []models.Product{
		{ID: uuid.New(), Name: "Laptop", Price: decimal.RequireFromString("999.99"), Category: "Electronics"},
		{ID: uuid.New(), Name: "Coffee Mug", Price: decimal.RequireFromString("19.99"), Category: "Home"},
	}
}

func TestProductListPassesFilters(t *testing.T) {
	svc := &stubCatalog{products: sampleProducts()}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=Home&search=%20mug%20&limit=3", nil)
	rec := serve(ProductList(svc, testLogger()), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotFilters.Category != "Home" || svc.gotFilters.Search != "mug" || svc.gotFilters.Limit != 3 {
		t.Fatalf("unexpected filters %+v", svc.gotFilters)
	}

	var products []catalog.ProductDTO
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 2 || products[0].Name != "Laptop" {
		t.Fatalf("unexpected products %+v", products)
	}
}

func TestProductListRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=-1", nil)
	rec := serve(ProductList(&stubCatalog{}, testLogger()), req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProductListServiceFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := serve(ProductList(&stubCatalog{err: errors.New("db down")}, testLogger()), req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestProductDetail(t *testing.T) {
	products := sampleProducts()
	svc := &stubCatalog{products: products}

	t.Run("found", func(t *testing.T) {
		req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", products[1].ID.String())
		rec := serve(ProductDetail(svc, testLogger()), req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var product catalog.ProductDTO
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &product); err != nil {
			t.Fatalf("decode product: %v", err)
		}
		if product.Name != "Coffee Mug" || !product.Price.Equal(decimal.RequireFromString("19.99")) {
			t.Fatalf("unexpected product %+v", product)
		}
	})

	t.Run("missing", func(t *testing.T) {
		req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", uuid.NewString())
		rec := serve(ProductDetail(svc, testLogger()), req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", "laptop")
		rec := serve(ProductDetail(svc, testLogger()), req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestProductCategoriesEmptyIsArray(t *testing.T) {
	rec := serve(ProductCategories(&stubCatalog{}, testLogger()), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := string(decodeEnvelope(t, rec).Data); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestProductHandlersWithoutService(t *testing.T) {
	rec := serve(ProductFeatured(nil, testLogger()), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
