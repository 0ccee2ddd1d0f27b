package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is a cart entry joined with the product's current data.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	ImageURL  string          `json:"image_url"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// View is the priced rendering of a cart.
type View struct {
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// Empty reports whether the view has no lines.
func (v *View) Empty() bool {
	return v == nil || len(v.Lines) == 0
}

// AddResult is returned after a product is added.
type AddResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}
