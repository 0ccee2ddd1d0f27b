package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	AggregateOrder OutboxAggregateType = "order"

	EventOrderCreated OutboxEventType = "order_created"
)

var (
	aggregateTypes = []OutboxAggregateType{AggregateOrder}
	eventTypes     = []OutboxEventType{EventOrderCreated}
)

func (a OutboxAggregateType) String() string { return string(a) }

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", aggregateTypes, value)
}

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("outbox event type", eventTypes, value)
}
