package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSummary is one row of an account's order history.
type OrderSummary struct {
	ID        uuid.UUID         `json:"id" gorm:"column:id"`
	Total     decimal.Decimal   `json:"total" gorm:"column:total"`
	Status    enums.OrderStatus `json:"status" gorm:"column:status"`
	ItemCount int               `json:"item_count" gorm:"column:item_count"`
	CreatedAt time.Time         `json:"created_at" gorm:"column:created_at"`
}

// HistoryPage is a page of order summaries, newest first.
type HistoryPage struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderItemDetail is an order line joined with the product name. ProductName is
// empty when the product has since been removed from the catalog.
type OrderItemDetail struct {
	ID          uuid.UUID       `json:"id" gorm:"column:id"`
	ProductID   uuid.UUID       `json:"product_id" gorm:"column:product_id"`
	ProductName string          `json:"product_name" gorm:"column:product_name"`
	Quantity    int             `json:"quantity" gorm:"column:quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"column:unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"-"`
}

// OrderDetail is the confirmation view of a single order.
type OrderDetail struct {
	ID        uuid.UUID         `json:"id"`
	AccountID uuid.UUID         `json:"account_id"`
	Total     decimal.Decimal   `json:"total"`
	Status    enums.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Items     []OrderItemDetail `json:"items"`
}
