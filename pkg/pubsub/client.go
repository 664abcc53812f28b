// Package pubsub wraps the Pub/Sub v2 client with the topic and
// subscription names the marketplace uses.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// Pub/Sub resource ids: 3-255 chars, leading letter, no "goog" prefix.
var resourceIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-_.~+%]{2,254}$`)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds one Pub/Sub connection shared by publishers and subscribers.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient dials Pub/Sub and verifies the configured topic and subscription
// exist. Nothing is created on the fly; provisioning belongs to infra.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg}
	if err := c.verifyResources(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"project_id":   projectID,
			"events_topic": cfg.EventsTopic,
			"emulator":     gcp.PubSubEmulatorURL != "",
		})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

// clientOptions points the client at the local emulator when one is configured.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	endpoint := strings.TrimSpace(gcp.PubSubEmulatorURL)
	if endpoint == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(endpoint),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

// verifyResources reports every missing resource at once.
func (c *Client) verifyResources(ctx context.Context) error {
	var errs error
	for _, name := range configuredNames(c.cfg.EventsTopic) {
		errs = multierr.Append(errs, c.checkTopic(ctx, name))
	}
	subs := configuredNames(c.cfg.NotificationSubscription)
	if len(subs) == 0 {
		errs = multierr.Append(errs, errors.New("pubsub subscription name is required"))
	}
	for _, name := range subs {
		errs = multierr.Append(errs, c.checkSubscription(ctx, name))
	}
	return errs
}

func configuredNames(values ...string) []string {
	var names []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	full, err := c.resourceName(kindTopic, name)
	if err != nil {
		return err
	}
	_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	return describeLookup(kindTopic, name, err)
}

func (c *Client) checkSubscription(ctx context.Context, name string) error {
	full, err := c.resourceName(kindSubscription, name)
	if err != nil {
		return err
	}
	_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	return describeLookup(kindSubscription, name, err)
}

func describeLookup(kind resourceKind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub %s %q does not exist", strings.TrimSuffix(string(kind), "s"), name)
	default:
		return fmt.Errorf("checking pubsub %s %q: %w", strings.TrimSuffix(string(kind), "s"), name, err)
	}
}

// Subscription returns a subscriber for an id or full resource name, or nil
// when the name cannot be resolved.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full, err := c.resourceName(kindSubscription, name)
	if err != nil {
		return nil
	}
	return c.client.Subscriber(full)
}

// NotificationSubscription feeds the notification worker.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full, err := c.resourceName(kindTopic, name)
	if err != nil {
		return nil
	}
	return c.client.Publisher(full)
}

// Ping re-runs the startup resource check.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verifyResources(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id into projects/<p>/<kind>/<id>. Full names
// of the same kind pass through untouched, including other projects.
func (c *Client) resourceName(kind resourceKind, name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", fmt.Errorf("empty pubsub %s name", kind)
	}
	if strings.HasPrefix(n, "projects/") {
		parts := strings.Split(n, "/")
		if len(parts) != 4 || parts[1] == "" || parts[2] != string(kind) || !validResourceID(parts[3]) {
			return "", fmt.Errorf("malformed pubsub %s name %q", kind, n)
		}
		return n, nil
	}
	if !validResourceID(n) {
		return "", fmt.Errorf("invalid pubsub %s id %q", kind, n)
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n), nil
}

func validResourceID(id string) bool {
	return resourceIDPattern.MatchString(id) && !strings.HasPrefix(strings.ToLower(id), "goog")
}
