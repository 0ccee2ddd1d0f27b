package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	relayJob = "outbox_relay"

	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10

	publishTimeout = 15 * time.Second
	maxIdleDelay   = 10 * time.Second
)

type txDB interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type jobMetrics interface {
	ObserveDuration(job string, d time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

// sender publishes one message and returns a handle resolving to the server id.
type sender func(ctx context.Context, topic string, msg *gcppubsub.Message) (pending, error)

type pending interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Outbox   config.OutboxConfig
	Logger   *logger.Logger
	DB       txDB
	PubSub   topicSource
	Store    outboxStore
	Resolver eventResolver
	Metrics  jobMetrics
	Send     sender
}

// Relay moves committed outbox rows to Pub/Sub. Each batch is locked, published
// and settled inside one transaction so a row is never claimed twice.
type Relay struct {
	logg        *logger.Logger
	db          txDB
	pubsub      topicSource
	store       outboxStore
	resolver    eventResolver
	metrics     jobMetrics
	send        sender
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Store == nil:
		return nil, errors.New("outbox repository is required")
	case p.Resolver == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		store:       p.Store,
		resolver:    p.Resolver,
		metrics:     p.Metrics,
		send:        p.Send,
		batchSize:   positiveOr(p.Outbox.BatchSize, fallbackBatchSize),
		maxAttempts: positiveOr(p.Outbox.MaxAttempts, fallbackMaxAttempts),
		poll:        p.Outbox.PollInterval,
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	if r.metrics == nil {
		r.metrics = discardMetrics{}
	}
	if r.send == nil {
		r.send = r.sendToPubSub
	}
	return r, nil
}

// Run drains the outbox until ctx is canceled. A full batch is followed
// immediately by the next one; an empty or failed pass waits before polling again.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	failures := 0
	for {
		summary, err := r.relayBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			failures++
			r.logg.Error(ctx, "outbox relay pass failed", err)
			wait = idleDelay(r.poll, failures)
		case summary.claimed == r.batchSize:
			failures = 0
		default:
			failures = 0
			wait = idleDelay(r.poll, 0)
		}

		if wait == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

type batchSummary struct {
	claimed   int
	published int
	retried   int
	parked    int
}

type delivery struct {
	event  models.OutboxEvent
	topic  string
	result pending
	err    error
}

func (r *Relay) relayBatch(ctx context.Context) (batchSummary, error) {
	var summary batchSummary
	started := time.Now()

	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		summary.claimed = len(events)
		if len(events) == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		deliveries := make([]delivery, 0, len(events))
		for _, event := range events {
			deliveries = append(deliveries, r.dispatch(publishCtx, event))
		}
		for i := range deliveries {
			d := &deliveries[i]
			if d.err == nil {
				_, d.err = d.result.Get(publishCtx)
			}
			if err := r.settle(ctx, tx, *d, &summary); err != nil {
				return err
			}
		}
		return nil
	})

	if summary.claimed > 0 {
		r.metrics.ObserveDuration(relayJob, time.Since(started))
		if err != nil {
			r.metrics.IncFailure(relayJob)
		} else {
			r.metrics.IncSuccess(relayJob)
			r.logg.Info(r.logg.WithFields(ctx, map[string]any{
				"claimed":   summary.claimed,
				"published": summary.published,
				"retried":   summary.retried,
				"parked":    summary.parked,
			}), "outbox batch relayed")
		}
	}
	return summary, err
}

func (r *Relay) dispatch(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		return delivery{event: event, err: err}
	}
	topic := resolved.Descriptor.Topic
	msg := &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope.EventID),
	}
	result, err := r.send(ctx, topic, msg)
	return delivery{event: event, topic: topic, result: result, err: err}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d delivery, summary *batchSummary) error {
	if d.err == nil {
		if err := r.store.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		summary.published++
		return nil
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     d.event.ID.String(),
		"event_type":    string(d.event.EventType),
		"aggregate_id":  d.event.AggregateID.String(),
		"topic":         d.topic,
		"attempt_count": d.event.AttemptCount + 1,
		"error":         d.err.Error(),
	})

	var nonRetryable registry.NonRetryableError
	terminal := errors.As(d.err, &nonRetryable)
	if !terminal && d.event.AttemptCount+1 >= r.maxAttempts {
		terminal = true
		d.err = fmt.Errorf("max publish attempts reached: %w", d.err)
	}

	if terminal {
		r.logg.Warn(logCtx, "outbox event parked")
		if err := r.store.MarkTerminalTx(tx, d.event.ID, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", d.event.ID, err)
		}
		summary.parked++
		return nil
	}

	r.logg.Warn(logCtx, "outbox publish failed, will retry")
	if err := r.store.MarkFailedTx(tx, d.event.ID, d.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", d.event.ID, err)
	}
	summary.retried++
	return nil
}

func (r *Relay) sendToPubSub(ctx context.Context, topic string, msg *gcppubsub.Message) (pending, error) {
	pub := r.pubsub.Publisher(topic)
	if pub == nil {
		return nil, registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	return pub.Publish(ctx, msg), nil
}

func messageAttributes(event models.OutboxEvent, eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// idleDelay doubles the poll interval per consecutive failure, caps it, and adds
// up to a quarter of jitter.
func idleDelay(poll time.Duration, failures int) time.Duration {
	d := poll
	for i := 0; i < failures && d < maxIdleDelay; i++ {
		d *= 2
	}
	if d > maxIdleDelay {
		d = maxIdleDelay
	}
	if quarter := int64(d / 4); quarter > 0 {
		d += time.Duration(rand.Int64N(quarter))
	}
	return d
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type discardMetrics struct{}

func (discardMetrics) ObserveDuration(string, time.Duration) {}
func (discardMetrics) IncSuccess(string)                     {}
func (discardMetrics) IncFailure(string)                     {}
