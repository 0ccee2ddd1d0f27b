package enums

import "slices"

// OrderStatus tracks the lifecycle of a placed order. Checkout only ever
// creates pending orders.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
)

var orderStatuses = []OrderStatus{OrderStatusPending}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return slices.Contains(orderStatuses, s) }

// ParseOrderStatus is case-sensitive.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", orderStatuses, value)
}
