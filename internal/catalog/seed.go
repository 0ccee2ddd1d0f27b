package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

type seedProduct struct {
	name        string
	description string
	price       string
	stock       int
	category    string
}

var defaultProducts = []seedProduct{
	{"Laptop", "High-performance laptop with 16GB RAM and 512GB SSD", "999.99", 10, "Electronics"},
	{"Smartphone", "Latest smartphone with 5G and triple camera", "699.99", 15, "Electronics"},
	{"Headphones", "Noise-cancelling wireless headphones", "199.99", 20, "Electronics"},
	{"Coffee Mug", "Ceramic coffee mug, 350ml", "19.99", 50, "Home"},
	{"T-Shirt", "Cotton t-shirt, unisex", "29.99", 30, "Clothing"},
}

// DefaultProducts builds the starter catalog. Creation times are spaced one
// microsecond apart so listing order matches seed order.
func DefaultProducts(now time.Time) []models.Product {
	out := make([]models.Product, 0, len(defaultProducts))
	for i, p := range defaultProducts {
		out = append(out, models.Product{
			Name:        p.name,
			Description: p.description,
			Price:       decimal.RequireFromString(p.price),
			Stock:       p.stock,
			Category:    p.category,
			ImageURL:    imagePath(p.name),
			CreatedAt:   now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return out
}

func imagePath(name string) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return fmt.Sprintf("/static/images/%s.jpg", slug)
}
