package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/testutil/dbtest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newSeededService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	n, err := svc.SeedDefaults(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(defaultProducts) {
		t.Fatalf("expected %d seeded products, got %d", len(defaultProducts), n)
	}
	return svc, client
}

func names(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	svc, _ := newSeededService(t)

	n, err := svc.SeedDefaults(context.Background())
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rows on second seed, got %d", n)
	}

	all, err := svc.List(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(defaultProducts) {
		t.Fatalf("expected %d products, got %d", len(defaultProducts), len(all))
	}
}

func TestListPreservesSeedOrder(t *testing.T) {
	svc, _ := newSeededService(t)

	all, err := svc.List(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Laptop", "Smartphone", "Headphones", "Coffee Mug", "T-Shirt"}
	got := names(all)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s (%v)", i, want[i], got[i], got)
		}
	}
	if !all[0].Price.Equal(decimal.RequireFromString("999.99")) {
		t.Fatalf("unexpected laptop price %s", all[0].Price)
	}
	if all[3].ImageURL != "/static/images/coffee_mug.jpg" {
		t.Fatalf("unexpected image path %q", all[3].ImageURL)
	}
}

func TestListFilters(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"category", Filters{Category: "Electronics"}, []string{"Laptop", "Smartphone", "Headphones"}},
		{"category is exact", Filters{Category: "electronics"}, nil},
		{"search name case insensitive", Filters{Search: "LAPTOP"}, []string{"Laptop"}},
		{"search description", Filters{Search: "ceramic"}, []string{"Coffee Mug"}},
		{"search and category", Filters{Search: "wireless", Category: "Home"}, nil},
		{"wildcards are literal", Filters{Search: "%"}, nil},
		{"underscore is literal", Filters{Search: "_"}, nil},
		{"limit", Filters{Limit: 2}, []string{"Laptop", "Smartphone"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.List(ctx, tc.filters)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			gotNames := names(got)
			if len(gotNames) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, gotNames)
			}
			for i := range tc.want {
				if gotNames[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, gotNames)
				}
			}
		})
	}
}

func TestGetReturnsNilForMissing(t *testing.T) {
	svc, _ := newSeededService(t)

	product, err := svc.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if product != nil {
		t.Fatalf("expected nil product, got %+v", product)
	}
}

func TestResolveSkipsMissing(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found, err := svc.Get(ctx, all[1].ID)
	if err != nil || found == nil || found.Name != "Smartphone" {
		t.Fatalf("expected smartphone, got %+v err=%v", found, err)
	}

	missing := uuid.New()
	resolved, err := svc.Resolve(ctx, []uuid.UUID{all[0].ID, missing, all[4].ID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved products, got %d", len(resolved))
	}
	if _, ok := resolved[missing]; ok {
		t.Fatalf("missing id should not resolve")
	}

	empty, err := svc.Resolve(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty resolve, got %v err=%v", empty, err)
	}
}

func TestCategories(t *testing.T) {
	svc, _ := newSeededService(t)

	categories, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	want := []string{"Clothing", "Electronics", "Home"}
	if len(categories) != len(want) {
		t.Fatalf("expected %v, got %v", want, categories)
	}
	for i := range want {
		if categories[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, categories)
		}
	}
}

func TestRepositoryWithTxSeesUncommittedRows(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	tx := client.DB().Begin()
	t.Cleanup(func() { _ = tx.Rollback() })

	repo := NewRepository(client.DB()).WithTx(tx)
	products := DefaultProducts(time.Now().UTC())[:1]
	if err := repo.CreateBatch(ctx, products); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByID(ctx, products[0].ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.Name != "Laptop" {
		t.Fatalf("expected laptop inside tx, got %+v", got)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escape %q", got)
	}
}
