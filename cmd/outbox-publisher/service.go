package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
	"github.com/angelmondragon/mygros-backend/pkg/metrics"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type brokerClient interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(tx *gorm.DB) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

// message is the broker-neutral form of an outbox row on the wire.
type message struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

type publisher interface {
	Publish(context.Context, message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// delivery is what happened to one row during a batch.
type delivery struct {
	event   models.OutboxEvent
	topics  []string
	fields  map[string]any
	outcome outcome
	reason  enums.OutboxDLQErrorReason
	err     error
}

func (d delivery) primaryTopic() string {
	if len(d.topics) == 0 {
		return ""
	}
	return d.topics[0]
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	Broker           brokerClient
	BrokerName       string
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

// Service drains the outbox table to the configured broker.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	broker           brokerClient
	brokerName       string
	metrics          *metrics.OutboxMetrics
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	now              func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("broker client is required")
	case params.PublisherFactory == nil:
		return nil, errors.New("publisher factory is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	opts := params.Config.Outbox
	brokerName := params.BrokerName
	if brokerName == "" {
		brokerName = config.BrokerPubSub
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		broker:           params.Broker,
		brokerName:       brokerName,
		metrics:          params.Metrics,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		publisherFactory: params.PublisherFactory,
		batchSize:        positiveOr(opts.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(opts.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(positiveOr(opts.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{s.brokerName, s.broker.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			s.logg.Error(ctx, check.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}
	return nil
}

// Run polls until ctx is done. A full batch is followed immediately by the
// next one; an idle poll waits one interval; a failed batch backs off
// exponentially until a batch succeeds again.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	idle := s.idleBackoff()
	var failing retry.Backoff
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			if failing == nil {
				failing = s.failureBackoff()
			}
			wait, _ = failing.Next()
		case processed:
			failing = nil
			continue
		default:
			failing = nil
			wait, _ = idle.Next()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) idleBackoff() retry.Backoff {
	return retry.WithJitter(jitterWindow, retry.NewConstant(s.pollInterval))
}

func (s *Service) failureBackoff() retry.Backoff {
	return retry.WithJitter(jitterWindow,
		retry.WithCappedDuration(maxBackoff, retry.NewExponential(2*s.pollInterval)))
}

// processBatch locks up to batchSize rows, delivers each one and settles its
// outcome inside the same transaction. It reports whether any row was seen.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveBatch(time.Since(started)) }()

	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		for _, event := range events {
			if err := s.settle(ctx, tx, s.deliver(ctx, event)); err != nil {
				return err
			}
		}

		backlog, err := s.repo.CountPending(tx)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox backlog count failed")
			return nil
		}
		s.metrics.SetBacklog(backlog)
		return nil
	})
	return processed, err
}

// deliver resolves the row and publishes it to every target topic. The row
// counts as published only when every target acks.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	d := delivery{event: event}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		d.fields = s.eventFields(event, outbox.PayloadEnvelope{}, "")
		return d.deadLetter(enums.OutboxDLQReasonNonRetryable, err)
	}

	d.topics = s.targets(resolved.Descriptor)
	d.fields = s.eventFields(event, resolved.Envelope, d.primaryTopic())
	msg := wireMessage(event, resolved.Envelope)
	for _, topic := range d.topics {
		if err := s.publishTo(ctx, topic, msg); err != nil {
			return s.classify(d, err)
		}
	}
	d.outcome = outcomePublished
	return d
}

func (d delivery) deadLetter(reason enums.OutboxDLQErrorReason, err error) delivery {
	d.outcome = outcomeDeadLetter
	d.reason = reason
	d.err = err
	return d
}

// classify decides whether a failed publish is retried or dead-lettered.
func (s *Service) classify(d delivery, err error) delivery {
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return d.deadLetter(enums.OutboxDLQReasonNonRetryable, err)
	}
	attempt := d.event.AttemptCount + 1
	d.fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		d.fields["terminal_reason"] = "max_attempts"
		return d.deadLetter(enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}
	d.outcome = outcomeRetry
	d.err = err
	return d
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	ctx = s.logg.WithFields(ctx, d.fields)
	id := d.event.ID

	switch d.outcome {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
		for _, topic := range d.topics {
			s.metrics.Published(topic)
		}
		s.logg.Info(ctx, "outbox event published")

	case outcomeRetry:
		s.logg.Warn(s.logg.WithField(ctx, "error", d.err.Error()), "outbox publish failed")
		s.metrics.Failed(d.primaryTopic())
		if err := s.repo.MarkFailedTx(tx, id, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", id, err)
		}

	case outcomeDeadLetter:
		ctx = s.logg.WithFields(ctx, map[string]any{"error_reason": d.reason, "error": d.err.Error()})
		s.logg.Warn(ctx, "outbox event will not be retried")
		if err := s.dlq.InsertTx(tx, s.dlqEntry(d)); err != nil {
			return fmt.Errorf("insert dlq %s: %w", id, err)
		}
		if err := s.repo.MarkTerminalTx(tx, id, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", id, err)
		}
		s.metrics.DeadLettered(string(d.reason))
	}
	return nil
}

func (s *Service) dlqEntry(d delivery) models.OutboxDLQ {
	msg := d.err.Error()
	return models.OutboxDLQ{
		EventID:       d.event.ID,
		EventType:     d.event.EventType,
		AggregateType: d.event.AggregateType,
		AggregateID:   d.event.AggregateID,
		Payload:       d.event.Payload,
		ErrorReason:   d.reason,
		ErrorMessage:  &msg,
		AttemptCount:  d.event.AttemptCount,
		FailedAt:      s.now(),
	}
}

// targets lists the descriptor topic first, then the analytics topic for
// events the warehouse ingests.
func (s *Service) targets(desc registry.EventDescriptor) []string {
	topics := []string{desc.Topic}
	if desc.Analytics && s.cfg.PubSub.AnalyticsTopic != "" {
		topics = append(topics, s.cfg.PubSub.AnalyticsTopic)
	}
	return topics
}

func wireMessage(event models.OutboxEvent, envelope outbox.PayloadEnvelope) message {
	return message{
		Key:        event.AggregateID.String(),
		Data:       event.Payload,
		Attributes: outbox.Attributes(event, envelope),
	}
}

func (s *Service) publishTo(ctx context.Context, topic string, msg message) error {
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
