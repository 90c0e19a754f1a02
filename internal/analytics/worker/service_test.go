package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mygros-backend/internal/analytics/router"
	"github.com/angelmondragon/mygros-backend/internal/analytics/types"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/idempotency"
)

func TestBuildEnvelope(t *testing.T) {
	eventID := uuid.New()
	orderID := uuid.NewString()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := newMessage(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"order_id":"` + orderID + `"}`),
	}, orderAttrs(orderID))

	env, err := buildEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, eventID, env.EventID)
	assert.Equal(t, enums.EventOrderCreated, env.EventType)
	assert.Equal(t, enums.AggregateOrder, env.AggregateType)
	assert.Equal(t, orderID, env.AggregateID)
	assert.Equal(t, 1, env.Version)
	assert.True(t, env.OccurredAt.Equal(occurred))
}

func TestBuildEnvelopeRequiresAggregate(t *testing.T) {
	attrs := orderAttrs(uuid.NewString())
	delete(attrs, outbox.AttrAggregateID)
	_, err := buildEnvelope(newMessage(t, validEnvelope(), attrs))
	assert.ErrorContains(t, err, "aggregate_id")

	attrs = orderAttrs(uuid.NewString())
	delete(attrs, outbox.AttrAggregateType)
	_, err = buildEnvelope(newMessage(t, validEnvelope(), attrs))
	assert.ErrorContains(t, err, "aggregate_type")
}

func TestProcess(t *testing.T) {
	cases := map[string]struct {
		seen       bool
		handlerErr error
		wantAck    bool
		wantCalled bool
	}{
		"new event":         {wantAck: true, wantCalled: true},
		"already processed": {seen: true, wantAck: true},
		"handler failure":   {handlerErr: errors.New("boom"), wantCalled: true},
		"unsupported event": {handlerErr: fmt.Errorf("%w: message_posted", router.ErrUnsupportedEventType), wantAck: true, wantCalled: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			manager := &stubManager{seen: tc.seen}
			handler := &stubHandler{err: tc.handlerErr}
			svc := newTestService(handler, manager)

			msg := newMessage(t, validEnvelope(), orderAttrs(uuid.NewString()))
			assert.Equal(t, tc.wantAck, svc.process(context.Background(), msg))
			assert.Equal(t, tc.wantCalled, handler.called)
			require.Len(t, manager.calls, 1)
			assert.Equal(t, analyticsConsumerName, manager.calls[0].consumer)
			if handler.called {
				assert.Equal(t, manager.calls[0].eventID, handler.envelope.EventID)
			}
		})
	}
}

func TestProcessAcksMalformedMessage(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestService(handler, manager)

	assert.True(t, svc.process(context.Background(), &gcppubsub.Message{Data: []byte("invalid json")}))
	assert.False(t, handler.called)
	assert.Empty(t, manager.calls)
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(nil, &stubHandler{}, &stubManager{}, testLogger())
	assert.Error(t, err)
}

func validEnvelope() outbox.PayloadEnvelope {
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"order_id":"abc"}`),
	}
}

func orderAttrs(aggregateID string) map[string]string {
	return map[string]string{
		outbox.AttrEventType:     string(enums.EventOrderCreated),
		outbox.AttrAggregateType: string(enums.AggregateOrder),
		outbox.AttrAggregateID:   aggregateID,
	}
}

func newMessage(t *testing.T, envelope outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: attrs}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard})
}

func newTestService(handler Handler, manager *stubManager) *Service {
	return &Service{handler: handler, manager: manager, logg: testLogger()}
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type onceCall struct {
	consumer string
	eventID  uuid.UUID
}

type stubManager struct {
	seen  bool
	calls []onceCall
}

func (s *stubManager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error {
	s.calls = append(s.calls, onceCall{consumer: consumer, eventID: eventID})
	if s.seen {
		return idempotency.ErrAlreadyProcessed
	}
	return fn(ctx)
}
