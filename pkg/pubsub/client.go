// Package pubsub owns the Google Pub/Sub connection for order events.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects to Pub/Sub and checks that the orders topic and the
// optional orders subscription exist. With CreateMissing set, absent
// resources are created instead.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	raw, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: raw, projectID: projectID, cfg: cfg}
	if err := c.verify(ctx, cfg.CreateMissing); err != nil {
		_ = raw.Close()
		return nil, err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"project":      projectID,
		"topic":        cfg.OrdersTopic,
		"subscription": cfg.OrdersSubscription,
	}), "pubsub client initialized")
	return c, nil
}

func (c *Client) verify(ctx context.Context, create bool) error {
	topic := c.resourceName(kindTopic, c.cfg.OrdersTopic)
	if topic == "" {
		return errNoTopic
	}
	if err := c.ensure(ctx, kindTopic, topic, create); err != nil {
		return err
	}
	if sub := c.resourceName(kindSubscription, c.cfg.OrdersSubscription); sub != "" {
		return c.ensure(ctx, kindSubscription, sub, create)
	}
	return nil
}

func (c *Client) ensure(ctx context.Context, kind resourceKind, name string, create bool) error {
	err := c.lookup(ctx, kind, name)
	if status.Code(err) == codes.NotFound && create {
		err = c.create(ctx, kind, name)
		if status.Code(err) == codes.AlreadyExists {
			err = nil
		}
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

func (c *Client) lookup(ctx context.Context, kind resourceKind, name string) error {
	if kind == kindTopic {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		return err
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	return err
}

func (c *Client) create(ctx context.Context, kind resourceKind, name string) error {
	if kind == kindTopic {
		_, err := c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
		return err
	}
	_, err := c.client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  name,
		Topic: c.resourceName(kindTopic, c.cfg.OrdersTopic),
	})
	return err
}

// Publisher returns a handle for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resourceName(kindTopic, name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.OrdersTopic)
}

// Subscriber returns a handle for a subscription id or full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resourceName(kindSubscription, name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// OrdersSubscriber is nil when no orders subscription is configured.
func (c *Client) OrdersSubscriber() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.OrdersSubscription)
}

// Ping re-checks the configured resources without creating anything.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx, false)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short id into projects/<p>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resourceName(kind resourceKind, name string) string {
	n := strings.TrimSpace(name)
	if c == nil || n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(kind)+"/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + string(kind) + "/" + n
}
