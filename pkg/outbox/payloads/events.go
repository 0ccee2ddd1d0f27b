package payloads

import (
	"github.com/google/uuid"
)

// OrderCreatedEvent is published once checkout commits an order.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID          `json:"order_id"`
	AccountID uuid.UUID          `json:"account_id"`
	Total     string             `json:"total"`
	Status    string             `json:"status"`
	Items     []OrderCreatedItem `json:"items"`
}

// OrderCreatedItem mirrors one order item at the price charged.
type OrderCreatedItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}
