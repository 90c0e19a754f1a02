package notifications

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/idempotency"
)

const notificationConsumerName = "notification-worker"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error
}

type composer interface {
	Handles(eventType enums.OutboxEventType) bool
	Compose(ctx context.Context, evt Event) ([]models.Notification, error)
}

type writer interface {
	CreateBatch(ctx context.Context, rows []models.Notification) (int64, error)
}

type ConsumerParams struct {
	Subscription *gcppubsub.Subscriber
	Composer     *Composer
	Repository   *Repository
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
}

// Consumer reads the notification topic and stores one row per recipient.
type Consumer struct {
	subscription receiver
	composer     composer
	repo         writer
	idempotency  onceRunner
	logg         *logger.Logger
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Subscription == nil {
		return nil, errors.New("notification subscription required")
	}
	if p.Composer == nil {
		return nil, errors.New("notification composer required")
	}
	if p.Repository == nil {
		return nil, errors.New("notifications repository required")
	}
	if p.Idempotency == nil {
		return nil, errors.New("idempotency manager required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: p.Subscription,
		composer:     p.Composer,
		repo:         p.Repository,
		idempotency:  p.Idempotency,
		logg:         p.Logger,
	}, nil
}

// Run blocks until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := c.logg.WithFields(ctx, fields)

	evt, err := decodeEvent(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping malformed notification event")
		return processResult{}
	}
	fields["event_id"] = evt.ID.String()
	fields["event_type"] = evt.Type
	logCtx = c.logg.WithFields(ctx, fields)

	if !c.composer.Handles(evt.Type) {
		c.logg.Info(logCtx, "skipping event without notifications")
		return processResult{}
	}

	var created int64
	err = c.idempotency.Once(logCtx, notificationConsumerName, evt.ID, func(inner context.Context) error {
		rows, err := c.composer.Compose(inner, *evt)
		if err != nil {
			return err
		}
		created, err = c.repo.CreateBatch(inner, rows)
		return err
	})
	switch {
	case err == nil:
		c.logg.Info(c.logg.WithField(logCtx, "created", created), "notifications stored")
		return processResult{}
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	default:
		c.logg.Error(logCtx, "notification handling failed", err)
		return processResult{nack: true}
	}
}

func decodeEvent(msg *gcppubsub.Message) (*Event, error) {
	d, err := outbox.ParseDelivery(msg.Data, msg.Attributes)
	if err != nil {
		return nil, err
	}
	return &Event{ID: d.EventID, Type: d.EventType, Data: d.Envelope.Data}, nil
}
