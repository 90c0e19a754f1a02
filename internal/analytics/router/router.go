package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/mygros-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/mygros-backend/pkg/bigquery"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers sales fact rows to the warehouse.
type Writer interface {
	InsertSales(ctx context.Context, row *pkgbigquery.SalesEventRow) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// rowBuilder maps a decoded payload to a sales fact. ok=false means the
// event carries no fact worth recording.
type rowBuilder func(env types.Envelope, payload any) (row *pkgbigquery.SalesEventRow, ok bool, err error)

// Router turns order and tracking events into sales facts.
type Router struct {
	writer   Writer
	decoders decoder
	builders map[enums.OutboxEventType]rowBuilder
	logg     *logger.Logger
	now      func() time.Time
}

func NewRouter(writer Writer, decoders *registry.DecoderRegistry, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if decoders == nil {
		decoders = registry.NewDefaultDecoderRegistry()
	}
	return &Router{
		writer:   writer,
		decoders: decoders,
		builders: map[enums.OutboxEventType]rowBuilder{
			enums.EventOrderCreated:          orderPlacedRow,
			enums.EventOrderValidated:        orderValidatedRow,
			enums.EventTrackingStatusChanged: orderDeliveredRow,
		},
		logg: logg,
		now:  time.Now,
	}, nil
}

// Handle decodes the envelope payload and writes the resulting fact, if any.
func (r *Router) Handle(ctx context.Context, env types.Envelope) error {
	build, ok := r.builders[env.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, env.EventType)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", env.EventType)
	}
	version := env.Version
	if version == 0 {
		version = 1
	}
	payload, err := r.decoders.Decode(env.EventType, version, env.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}

	row, ok, err := build(env, payload)
	if err != nil {
		return err
	}
	if !ok {
		r.logg.Debug(ctx, "event carries no sales fact")
		return nil
	}
	row.EventID = env.EventID.String()
	row.IngestedAt = r.now().UTC()
	if row.OccurredAt.IsZero() {
		row.OccurredAt = env.OccurredAt.UTC()
	}
	return r.writer.InsertSales(ctx, row)
}

func orderPlacedRow(_ types.Envelope, payload any) (*pkgbigquery.SalesEventRow, bool, error) {
	evt, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return nil, false, fmt.Errorf("unexpected payload %T", payload)
	}
	return &pkgbigquery.SalesEventRow{
		EventType:     string(enums.AnalyticsEventOrderPlaced),
		OrderID:       evt.OrderID.String(),
		OrderNumber:   evt.OrderNumber,
		BuyerID:       evt.BuyerID.String(),
		OrderStatus:   string(enums.OrderStatusPending),
		PaymentMethod: pkgbigquery.NullString(string(evt.PaymentMethod)),
		DeliveryZone:  pkgbigquery.NullString(string(evt.DeliveryZone)),
		TotalAmount:   evt.TotalAmount.Rat(),
		OccurredAt:    evt.PlacedAt.UTC(),
	}, true, nil
}

func orderValidatedRow(_ types.Envelope, payload any) (*pkgbigquery.SalesEventRow, bool, error) {
	evt, ok := payload.(*payloads.OrderValidatedEvent)
	if !ok {
		return nil, false, fmt.Errorf("unexpected payload %T", payload)
	}
	eventType := enums.AnalyticsEventOrderConfirmed
	if evt.Decision == enums.OrderDecisionReject {
		eventType = enums.AnalyticsEventOrderCancelled
	}
	return &pkgbigquery.SalesEventRow{
		EventType:   string(eventType),
		OrderID:     evt.OrderID.String(),
		OrderNumber: evt.OrderNumber,
		BuyerID:     evt.BuyerID.String(),
		OrderStatus: string(evt.Status),
		TotalAmount: evt.TotalAmount.Rat(),
		OccurredAt:  evt.ValidatedAt.UTC(),
	}, true, nil
}

// Only the final delivery step is a sales fact; intermediate steps are skipped.
func orderDeliveredRow(_ types.Envelope, payload any) (*pkgbigquery.SalesEventRow, bool, error) {
	evt, ok := payload.(*payloads.TrackingStatusChangedEvent)
	if !ok {
		return nil, false, fmt.Errorf("unexpected payload %T", payload)
	}
	if evt.To != enums.TrackingStatusDelivered {
		return nil, false, nil
	}
	return &pkgbigquery.SalesEventRow{
		EventType:      string(enums.AnalyticsEventOrderDelivered),
		OrderID:        evt.OrderID.String(),
		OrderNumber:    evt.OrderNumber,
		BuyerID:        evt.BuyerID.String(),
		OrderStatus:    string(evt.OrderStatus),
		TrackingStatus: pkgbigquery.NullString(string(evt.To)),
		TotalAmount:    evt.TotalAmount.Rat(),
		OccurredAt:     evt.ChangedAt.UTC(),
	}, true, nil
}
