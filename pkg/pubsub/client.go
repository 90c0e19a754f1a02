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

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

// Client wraps the Pub/Sub v2 client with the topics and subscriptions this
// process depends on. Those are verified at startup and by Ping.
type Client struct {
	client        *pubsub.Client
	projectID     string
	cfg           config.PubSubConfig
	topics        []string
	subscriptions []string
}

var errProjectIDRequired = errors.New("gcp project id is required")

// Requirements lists the resources a process needs to exist.
type Requirements struct {
	Topics        []string
	Subscriptions []string
}

// PublisherRequirements covers every topic the outbox publisher writes to.
func PublisherRequirements(cfg config.PubSubConfig) Requirements {
	return Requirements{Topics: nonEmpty(cfg.OrdersTopic, cfg.NotificationTopic, cfg.AnalyticsTopic)}
}

// AnalyticsRequirements covers the analytics worker subscription.
func AnalyticsRequirements(cfg config.PubSubConfig) Requirements {
	return Requirements{Subscriptions: nonEmpty(cfg.AnalyticsSubscription)}
}

// NotificationRequirements covers the notification worker subscription.
func NotificationRequirements(cfg config.PubSubConfig) Requirements {
	return Requirements{Subscriptions: nonEmpty(cfg.NotificationSubscription)}
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, req Requirements, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if len(req.Topics) == 0 && len(req.Subscriptions) == 0 {
		return nil, errors.New("at least one pubsub topic or subscription is required")
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:        psClient,
		projectID:     gcp.ProjectID,
		cfg:           cfg,
		topics:        req.Topics,
		subscriptions: req.Subscriptions,
	}
	if err := c.ensureResources(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        len(c.topics),
			"subscriptions": len(c.subscriptions),
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureResources(ctx context.Context) error {
	for _, name := range c.topics {
		fullName := topicResourceName(c.projectID, name)
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
		if err := classifyLookup("topic", name, err); err != nil {
			return err
		}
	}
	for _, name := range c.subscriptions {
		fullName := subscriptionResourceName(c.projectID, name)
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
		if err := classifyLookup("subscription", name, err); err != nil {
			return err
		}
	}
	return nil
}

func classifyLookup(kind, name string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Subscription returns a Subscriber for an ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := subscriptionResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher handle for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := topicResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureResources(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func subscriptionResourceName(projectID, name string) string {
	return resourceName(projectID, "subscriptions", name)
}

func topicResourceName(projectID, name string) string {
	return resourceName(projectID, "topics", name)
}

func resourceName(projectID, collection, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+collection+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, collection, n)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
