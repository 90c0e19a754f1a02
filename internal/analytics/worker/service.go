package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/internal/analytics/router"
	"github.com/angelmondragon/mygros-backend/internal/analytics/types"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/idempotency"
)

const analyticsConsumerName = "analytics-worker"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Service drains the analytics subscription into the handler, at most once
// per event inside the idempotency window.
type Service struct {
	subscription receiver
	handler      Handler
	manager      onceRunner
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager onceRunner, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, manager: manager, logg: logg}, nil
}

// Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether msg should be acked. Malformed and unsupported
// events are acked and dropped; handler failures are redelivered.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := buildEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		return true
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID.String(),
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})

	err = s.manager.Once(ctx, analyticsConsumerName, env.EventID, func(ctx context.Context) error {
		return s.handler.Handle(ctx, env)
	})
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		s.logg.Info(ctx, "event already processed")
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "unsupported analytics event")
	default:
		s.logg.Error(ctx, "analytics handler error", err)
		return false
	}
	return true
}

func buildEnvelope(msg *gcppubsub.Message) (types.Envelope, error) {
	d, err := outbox.ParseDelivery(msg.Data, msg.Attributes)
	if err != nil {
		return types.Envelope{}, err
	}
	switch {
	case d.AggregateType == "":
		return types.Envelope{}, errors.New("aggregate_type missing")
	case d.AggregateID == "":
		return types.Envelope{}, errors.New("aggregate_id missing")
	}
	return types.Envelope{
		EventID:       d.EventID,
		EventType:     d.EventType,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Version:       d.Envelope.Version,
		OccurredAt:    d.Envelope.OccurredAt.UTC(),
		Payload:       d.Envelope.Data,
	}, nil
}
