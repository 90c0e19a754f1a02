package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

// Producer hands out one kafka.Writer per topic and closes them together.
type Producer struct {
	brokers      []string
	writeTimeout time.Duration
	logg         *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewProducer(cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Producer{
		brokers:      brokers,
		writeTimeout: timeout,
		logg:         logg,
		writers:      make(map[string]*kafka.Writer),
	}, nil
}

// Writer returns the writer for topic, creating it on first use.
func (p *Producer) Writer(topic string) *kafka.Writer {
	if p == nil || topic == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: p.writeTimeout,
	}
	p.writers[topic] = w
	return w
}

// Publish writes a single keyed message. Messages sharing a key land on the
// same partition.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	w := p.Writer(topic)
	if w == nil {
		return fmt.Errorf("kafka writer not available for topic %q", topic)
	}
	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: toHeaders(headers),
	})
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	var errs error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dial %s: %w", addr, err))
			continue
		}
		return conn.Close()
	}
	return errs
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
		delete(p.writers, topic)
	}
	return errs
}

func toHeaders(attrs map[string]string) []kafka.Header {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return headers
}
