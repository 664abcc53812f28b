package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	dbpkg "github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

// ConsumerName scopes the idempotency markers written by the notification worker.
const ConsumerName = "notifications-worker"

type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type eventDecoder interface {
	DecodeMessage(eventType enums.OutboxEventType, data []byte) (*registry.ResolvedEvent, error)
}

// ConsumerParams groups the notification consumer dependencies.
type ConsumerParams struct {
	Repo         Repository
	Subscription subscription
	Registry     eventDecoder
	Idempotency  *idempotency.Manager
	Dispatcher   Dispatcher
	Logger       *logger.Logger
}

// Consumer turns lifecycle events into in-app notifications and dispatches them.
type Consumer struct {
	repo         Repository
	subscription subscription
	registry     eventDecoder
	idempotency  *idempotency.Manager
	dispatcher   Dispatcher
	logg         *logger.Logger
}

// NewConsumer builds the lifecycle notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	dispatcher := params.Dispatcher
	if dispatcher == nil {
		dispatcher = NewLogDispatcher(params.Logger)
	}
	return &Consumer{
		repo:         params.Repo,
		subscription: params.Subscription,
		registry:     params.Registry,
		idempotency:  params.Idempotency,
		dispatcher:   dispatcher,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	resolved, err := c.registry.DecodeMessage(enums.OutboxEventType(eventType), msg.Data)
	if err != nil {
		if registry.IsNonRetryable(err) {
			c.logg.Warn(logCtx, "dropping undecodable event: "+err.Error())
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to decode event", err)
		return processResult{nack: true}
	}

	eventID := resolved.Envelope.EventID
	logCtx = c.logg.WithField(logCtx, "event_id", eventID)

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		if holder, err := c.idempotency.Holder(ctx, ConsumerName, eventID); err == nil {
			logCtx = c.logg.WithField(logCtx, "claimed_by", holder)
		}
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notices := noticesFor(resolved.Descriptor.EventType, resolved.Payload)
	if len(notices) == 0 {
		c.logg.Info(logCtx, "event has no recipients")
		return processResult{ack: true}
	}

	var sourceID *uuid.UUID
	if parsed, err := uuid.Parse(eventID); err == nil {
		sourceID = &parsed
	}

	for _, n := range notices {
		if err := c.deliver(ctx, logCtx, n, sourceID); err != nil {
			c.logg.Error(logCtx, "notification handling failed", err)
			_ = c.idempotency.Delete(ctx, ConsumerName, eventID)
			return processResult{nack: true}
		}
	}
	return processResult{ack: true}
}

// deliver persists the in-app row and then calls the dispatcher. Only the
// insert can fail the message; a redelivery finds the row via the unique index.
func (c *Consumer) deliver(ctx, logCtx context.Context, n notice, sourceID *uuid.UUID) error {
	row := &models.Notification{
		UserID:        n.Recipient,
		Type:          n.Kind,
		Title:         n.Title,
		Message:       n.Message,
		SourceEventID: sourceID,
	}
	if n.Link != "" {
		link := n.Link
		row.Link = &link
	}

	if err := c.repo.Create(ctx, row); err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return err
		}
		c.logg.Info(logCtx, "notification already recorded")
		return nil
	}

	if err := c.dispatcher.Notify(ctx, n.Kind, n.Recipient, n.Args); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "recipient_id", n.Recipient.String()), "dispatcher failed: "+err.Error())
	}
	return nil
}
