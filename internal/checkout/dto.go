package checkout

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Where clients are sent when a gate fails.
const (
	LoginRedirect = "/api/v1/accounts/login"
	CartRedirect  = "/api/v1/cart"
)

// Result is returned once an order commits.
type Result struct {
	OrderID   uuid.UUID         `json:"order_id"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
	Status    enums.OrderStatus `json:"status"`
}

// GateDetails is attached to gate failures.
type GateDetails struct {
	Redirect string `json:"redirect"`
}
