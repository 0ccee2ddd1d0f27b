// Package registry routes outbox rows to Pub/Sub topics and checks that each
// stored payload still decodes into its event schema before it leaves the service.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor is the route for one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(row models.OutboxEvent, data json.RawMessage) (any, error)
}

// ResolvedEvent is a row that passed routing and schema checks.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps event types to their routes.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks rows that will never publish successfully.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	return &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{
		enums.EventOrderCreated: {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Topic:         cfg.OrdersTopic,
			decode:        decodeAs(checkOrderCreated),
		},
	}}, nil
}

// Resolve routes the row and decodes its payload. Every failure is
// non-retryable: the stored bytes will not change between attempts.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[row.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("no route for event type %q", row.EventType))
	}
	if row.AggregateType != desc.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s must belong to a %s, row has %s", row.EventType, desc.AggregateType, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("aggregate id missing"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.EventID == "" {
		return nil, NewNonRetryableError(errors.New("envelope has no event id"))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s envelope has no data", row.EventType))
	}

	payload, err := desc.decode(row, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func decodeAs[T any](check func(models.OutboxEvent, *T) error) func(models.OutboxEvent, json.RawMessage) (any, error) {
	return func(row models.OutboxEvent, data json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if err := check(row, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}
}

func checkOrderCreated(row models.OutboxEvent, p *payloads.OrderCreatedEvent) error {
	if p.OrderID != row.AggregateID {
		return fmt.Errorf("order id %s does not match aggregate %s", p.OrderID, row.AggregateID)
	}
	if len(p.Items) == 0 {
		return errors.New("order has no items")
	}
	if _, err := decimal.NewFromString(p.Total); err != nil {
		return fmt.Errorf("total %q: %w", p.Total, err)
	}
	for i, item := range p.Items {
		if item.ProductID == uuid.Nil || item.Quantity < 1 {
			return fmt.Errorf("item %d is incomplete", i)
		}
	}
	return nil
}
