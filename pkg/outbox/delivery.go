package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

// Message attribute keys set by the publisher.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

// Attributes builds the message attributes published with an outbox row.
func Attributes(event models.OutboxEvent, envelope PayloadEnvelope) map[string]string {
	return map[string]string{
		AttrEventID:       envelope.EventID,
		AttrEventType:     string(event.EventType),
		AttrAggregateType: string(event.AggregateType),
		AttrAggregateID:   event.AggregateID.String(),
		AttrCreatedAt:     event.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Delivery is an outbox event as a subscriber receives it.
type Delivery struct {
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Envelope      PayloadEnvelope
}

// ParseDelivery decodes a message body and its attributes. The event id comes
// from the envelope, or from the attributes for envelopes that lack one. The
// aggregate attributes are optional here; consumers that need them check.
func ParseDelivery(data []byte, attrs map[string]string) (Delivery, error) {
	var d Delivery
	if err := json.Unmarshal(data, &d.Envelope); err != nil {
		return d, fmt.Errorf("decode payload envelope: %w", err)
	}

	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	var err error
	if d.EventType, err = enums.ParseOutboxEventType(attr(AttrEventType)); err != nil {
		return d, fmt.Errorf("%s: %w", AttrEventType, err)
	}
	if raw := attr(AttrAggregateType); raw != "" {
		if d.AggregateType, err = enums.ParseOutboxAggregateType(raw); err != nil {
			return d, fmt.Errorf("%s: %w", AttrAggregateType, err)
		}
	}
	d.AggregateID = attr(AttrAggregateID)

	rawID := strings.TrimSpace(d.Envelope.EventID)
	if rawID == "" {
		rawID = attr(AttrEventID)
	}
	if rawID == "" {
		return d, errors.New("event_id missing")
	}
	if d.EventID, err = uuid.Parse(rawID); err != nil {
		return d, fmt.Errorf("%s: %w", AttrEventID, err)
	}
	return d, nil
}
