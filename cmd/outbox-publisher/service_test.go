package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/metrics"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, name string) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, name),
	}
}

func resolvedFor(topic string, analytics bool) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         topic,
			AggregateType: enums.AggregateOrder,
			Analytics:     analytics,
		},
		Envelope: outbox.PayloadEnvelope{EventID: uuid.NewString(), OccurredAt: time.Now()},
		Payload:  &payloads.OrderCreatedEvent{},
	}
}

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "one"), orderEvent(t, "two")}}
	pub := &fakePublisher{results: []publishResult{
		syncResult{err: errors.New("transient")},
		syncResult{},
	}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("orders-topic", false)}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
}

func TestServiceProcessBatchEmptyReportsIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPublishResolvedAlsoWritesAnalyticsTopic(t *testing.T) {
	event := orderEvent(t, "placed")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{syncResult{}, syncResult{}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("orders-topic", true)}, &fakeDLQRepo{}, nil)
	service.cfg.PubSub.AnalyticsTopic = "analytics-topic"

	var topics []string
	service.publisherFactory = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []string{"orders-topic", "analytics-topic"}, topics)
	assert.Empty(t, pub.results)
	assert.Len(t, repo.published, 1)

	require.Len(t, pub.sent, 2)
	assert.Equal(t, event.AggregateID.String(), pub.sent[0].Key)
	assert.Equal(t, string(enums.EventOrderCreated), pub.sent[0].Attributes["event_type"])
}

func TestPublishSkipsAnalyticsForNotificationEvents(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "msg")}}
	pub := &fakePublisher{results: []publishResult{syncResult{}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("notification-topic", false)}, &fakeDLQRepo{}, nil)
	service.cfg.PubSub.AnalyticsTopic = "analytics-topic"

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.sent, 1)
}

func TestServiceProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := orderEvent(t, "nonretryable")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlqRepo := &fakeDLQRepo{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	service := newTestService(t, repo, &fakePublisher{}, reg, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, dlqRepo.entries, 1)
	entry := dlqRepo.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.True(t, bytes.Equal(entry.Payload, event.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := orderEvent(t, "max-attempts")
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{syncResult{err: errors.New("transient")}}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("orders-topic", false)}, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, dlqRepo.entries, 1)
	assert.Equal(t, event.ID, dlqRepo.entries[0].EventID)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlqRepo.entries[0].ErrorReason)
}

func TestServiceMissingPublisherIsTerminal(t *testing.T) {
	event := orderEvent(t, "no-publisher")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, nil, &fakeRegistry{resolved: resolvedFor("orders-topic", false)}, dlqRepo, nil)
	service.publisherFactory = func(string) publisher { return nil }

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlqRepo.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlqRepo.entries[0].ErrorReason)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	cfg := &config.Config{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	_, err = NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            &fakeDB{},
		Broker:        &fakeBroker{},
		Repository:    &fakeRepo{},
		Registry:      &fakeRegistry{},
		DLQRepository: &fakeDLQRepo{},
	})
	assert.EqualError(t, err, "publisher factory is required")
}

func TestRunStopsOnBrokerPingFailure(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	service.broker = &fakeBroker{err: errors.New("unreachable")}

	err := service.Run(context.Background())
	assert.ErrorContains(t, err, "ping failed")
}

func TestRunReturnsOnCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
}

func TestFailureBackoffGrowsAndCaps(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	b := service.failureBackoff()

	first, stop := b.Next()
	require.False(t, stop)
	assert.LessOrEqual(t, first, 2*service.pollInterval+jitterWindow)

	var last time.Duration
	for i := 0; i < 20; i++ {
		last, stop = b.Next()
		require.False(t, stop)
		assert.LessOrEqual(t, last, maxBackoff+jitterWindow)
	}
	assert.GreaterOrEqual(t, last, maxBackoff-jitterWindow)
}

func TestProcessBatchReportsBacklog(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "one")}, pending: 7}
	pub := &fakePublisher{results: []publishResult{syncResult{}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("orders-topic", false)}, &fakeDLQRepo{}, nil)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.counted)
}

func TestClassifyRetriesUntilAttemptsExhausted(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	event := orderEvent(t, "classify")

	d := service.classify(delivery{event: event, fields: map[string]any{}}, errors.New("timeout"))
	assert.Equal(t, outcomeRetry, d.outcome)

	event.AttemptCount = service.maxAttempts - 1
	d = service.classify(delivery{event: event, fields: map[string]any{}}, errors.New("timeout"))
	assert.Equal(t, outcomeDeadLetter, d.outcome)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, d.reason)

	d = service.classify(delivery{event: orderEvent(t, "bad"), fields: map[string]any{}}, registry.NewNonRetryableError(errors.New("bad topic")))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, d.reason)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logg,
		DB:               &fakeDB{},
		Broker:           &fakeBroker{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
		Metrics:          metrics.NewOutboxMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	pending   int64
	counted   int
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

func (f *fakeRepo) CountPending(*gorm.DB) (int64, error) {
	f.counted++
	return f.pending, nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeBroker struct {
	err error
}

func (f *fakeBroker) Ping(context.Context) error {
	return f.err
}

type fakePublisher struct {
	results []publishResult
	sent    []message
}

func (f *fakePublisher) Publish(_ context.Context, msg message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
