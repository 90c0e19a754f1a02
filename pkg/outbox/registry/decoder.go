package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
)

type DecoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry lets consumers decode an event payload by type and
// envelope version, so a v2 payload can ship alongside v1.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]DecoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]DecoderFunc)}
}

func NewDefaultDecoderRegistry() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for eventType, decode := range map[enums.OutboxEventType]DecoderFunc{
		enums.EventOrderCreated:          decodeInto[payloads.OrderCreatedEvent],
		enums.EventOrderValidated:        decodeInto[payloads.OrderValidatedEvent],
		enums.EventTrackingStatusChanged: decodeInto[payloads.TrackingStatusChangedEvent],
		enums.EventDriverAssigned:        decodeInto[payloads.DriverAssignedEvent],
		enums.EventMessagePosted:         decodeInto[payloads.MessagePostedEvent],
		enums.EventAccessRequestReviewed: decodeInto[payloads.AccessRequestReviewedEvent],
	} {
		reg.Register(eventType, 1, decode)
	}
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder DecoderFunc) {
	r.mu.Lock()
	r.decoders[decoderKey{eventType, version}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[decoderKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s v%d", eventType, version)
	}
	return decode(payload)
}

func decodeInto[T any](payload json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, err
	}
	return out, nil
}
