package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	consumerName = "sales"
	dayLayout    = "2006-01-02"

	processedTTL = 7 * 24 * time.Hour
	counterTTL   = 35 * 24 * time.Hour
)

// Store is the redis surface used to deduplicate events and keep counters.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	CounterKey(name string) string
	IncrTally(ctx context.Context, counterKey, fieldsKey string, deltas []pkgredis.OrderedField, ttl time.Duration) error
	OrderedFields(ctx context.Context, key string) ([]pkgredis.OrderedField, error)
}

// Consumer folds order_created events into per-day order and unit counters.
type Consumer struct {
	store        Store
	subscription *pubsub.Subscriber
	logg         *logger.Logger
	metrics      *metrics.JobMetrics
	now          func() time.Time
}

// NewConsumer builds a consumer. subscription may be nil when only Handle and
// Report are used.
func NewConsumer(store Store, subscription *pubsub.Subscriber, logg *logger.Logger, m *metrics.JobMetrics) (*Consumer, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		store:        store,
		subscription: subscription,
		logg:         logg,
		metrics:      m,
		now:          time.Now,
	}, nil
}

// Run receives messages until ctx is canceled. Failed events are nacked for
// redelivery; malformed ones are acked and logged.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("sales subscription is required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		start := c.now()
		err := c.Handle(ctx, msg.Attributes, msg.Data)
		c.metrics.ObserveDuration(consumerName, c.now().Sub(start))
		if err != nil {
			c.metrics.IncFailure(consumerName)
			msg.Nack()
			return
		}
		c.metrics.IncSuccess(consumerName)
		msg.Ack()
	})
}

// Handle processes one published outbox message. A nil return means the
// message can be acknowledged.
func (c *Consumer) Handle(ctx context.Context, attrs map[string]string, data []byte) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   attrs["event_id"],
		"event_type": attrs["event_type"],
	})

	if attrs["event_type"] != string(enums.EventOrderCreated) {
		c.logg.Info(logCtx, "event not handled by sales consumer")
		return nil
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "discarding undecodable envelope", err)
		return nil
	}
	eventID := envelope.EventID
	if eventID == "" {
		eventID = attrs["event_id"]
	}
	if eventID == "" {
		c.logg.Warn(logCtx, "discarding event without id")
		return nil
	}

	var event payloads.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		c.logg.Error(logCtx, "discarding undecodable order payload", err)
		return nil
	}

	processedKey := c.store.IdempotencyKey(consumerName, eventID)
	fresh, err := c.store.SetNX(ctx, processedKey, "1", processedTTL)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	occurred := envelope.OccurredAt
	if occurred.IsZero() {
		occurred = c.now()
	}
	day := occurred.UTC().Format(dayLayout)

	if err := c.record(ctx, day, event); err != nil {
		if delErr := c.store.Del(ctx, processedKey); delErr != nil {
			c.logg.Error(logCtx, "release processed marker", delErr)
		}
		return err
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{"order_id": event.OrderID.String(), "day": day}), "order event recorded")
	return nil
}

// record counts the order and its units atomically, so a failed attempt leaves
// nothing behind for the redelivery to double count.
func (c *Consumer) record(ctx context.Context, day string, event payloads.OrderCreatedEvent) error {
	units := make([]pkgredis.OrderedField, 0, len(event.Items))
	for _, item := range event.Items {
		if item.Quantity > 0 {
			units = append(units, pkgredis.OrderedField{Field: item.ProductID.String(), Value: int64(item.Quantity)})
		}
	}
	ordersKey := c.store.CounterKey(ordersCounter(day))
	unitsKey := c.store.CounterKey(unitsCounter(day))
	if err := c.store.IncrTally(ctx, ordersKey, unitsKey, units, counterTTL); err != nil {
		return fmt.Errorf("count order: %w", err)
	}
	return nil
}

// ProductUnits is the number of units of a product ordered on a day.
type ProductUnits struct {
	ProductID uuid.UUID `json:"product_id"`
	Units     int64     `json:"units"`
}

// DailyReport summarizes one UTC day of orders.
type DailyReport struct {
	Day    string         `json:"day"`
	Orders int64          `json:"orders"`
	Units  []ProductUnits `json:"units"`
}

// Report reads the counters for the UTC day containing at. Products are listed
// in the order of their first sale that day.
func (c *Consumer) Report(ctx context.Context, at time.Time) (*DailyReport, error) {
	day := at.UTC().Format(dayLayout)
	report := &DailyReport{Day: day, Units: []ProductUnits{}}

	raw, err := c.store.Get(ctx, c.store.CounterKey(ordersCounter(day)))
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("read order counter: %w", err)
	default:
		if report.Orders, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parse order counter: %w", err)
		}
	}

	fields, err := c.store.OrderedFields(ctx, c.store.CounterKey(unitsCounter(day)))
	if err != nil {
		return nil, fmt.Errorf("read unit counters: %w", err)
	}
	for _, f := range fields {
		id, err := uuid.Parse(f.Field)
		if err != nil {
			continue
		}
		report.Units = append(report.Units, ProductUnits{ProductID: id, Units: f.Value})
	}
	return report, nil
}

func ordersCounter(day string) string { return "sales:orders:" + day }

func unitsCounter(day string) string { return "sales:units:" + day }
