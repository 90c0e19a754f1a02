package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/mygros-backend/pkg/kafka"
	"github.com/angelmondragon/mygros-backend/pkg/pubsub"
)

func pubSubPublisherFactory(client *pubsub.Client) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return &gcpPublisher{Publisher: p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

func kafkaPublisherFactory(producer *kafka.Producer) publisherFactory {
	return func(topic string) publisher {
		if producer == nil || topic == "" {
			return nil
		}
		return &kafkaPublisher{producer: producer, topic: topic}
	}
}

type kafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

// Publish writes synchronously; the returned result only replays the outcome.
func (p *kafkaPublisher) Publish(ctx context.Context, msg message) publishResult {
	err := p.producer.Publish(ctx, p.topic, []byte(msg.Key), msg.Data, msg.Attributes)
	return syncResult{id: msg.Attributes["event_id"], err: err}
}

type syncResult struct {
	id  string
	err error
}

func (r syncResult) Get(context.Context) (string, error) {
	return r.id, r.err
}
