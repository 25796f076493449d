package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
	"github.com/angelmondragon/clubledger-backend/pkg/kafka"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/registry"
	"github.com/angelmondragon/clubledger-backend/pkg/pubsub"
)

type closingSink interface {
	eventSink
	Close() error
}

// newSink builds the broker sink selected by CLUBLEDGER_EVENTING_TRANSPORT.
func newSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (closingSink, error) {
	topic := cfg.LedgerTopic()
	switch cfg.Eventing.Normalized() {
	case config.TransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, topic, logg)
		if err != nil {
			return nil, err
		}
		return newPubSubSink(client, topic), nil
	case config.TransportKafka:
		pub, err := kafka.NewPublisher(cfg.Kafka, topic)
		if err != nil {
			return nil, err
		}
		return &kafkaSink{publisher: pub}, nil
	}
	return nil, fmt.Errorf("outbox publisher needs a broker, transport is %q", cfg.Eventing.Transport)
}

type pubsubSink struct {
	client *pubsub.Client
	topic  string

	once      sync.Once
	publisher *gcppubsub.Publisher
}

func newPubSubSink(client *pubsub.Client, topic string) *pubsubSink {
	return &pubsubSink{client: client, topic: topic}
}

func (s *pubsubSink) Transport() string { return config.TransportPubSub }

func (s *pubsubSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *pubsubSink) Publish(ctx context.Context, msg outboundMessage) error {
	if msg.Topic != s.topic {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", msg.Topic))
	}
	s.once.Do(func() { s.publisher = s.client.LedgerPublisher() })
	if s.publisher == nil {
		return registry.NewNonRetryableError(errors.New("pubsub publisher unavailable"))
	}

	result := s.publisher.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.OrderingKey,
	})
	if _, err := result.Get(ctx); err != nil {
		// An ordered publisher pauses the key after a failure.
		s.publisher.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}

func (s *pubsubSink) Close() error {
	if s.publisher != nil {
		s.publisher.Stop()
	}
	return s.client.Close()
}

type kafkaPublisher interface {
	Topic() string
	Publish(context.Context, kafka.Message) error
	Close() error
}

type kafkaSink struct {
	publisher kafkaPublisher
}

func (s *kafkaSink) Transport() string { return config.TransportKafka }

// Ping is a no-op; the writer dials lazily and surfaces broker errors on Publish.
func (s *kafkaSink) Ping(context.Context) error {
	if s.publisher == nil {
		return errors.New("kafka publisher not initialized")
	}
	return nil
}

func (s *kafkaSink) Publish(ctx context.Context, msg outboundMessage) error {
	if !strings.EqualFold(msg.Topic, s.publisher.Topic()) {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", msg.Topic))
	}
	return s.publisher.Publish(ctx, kafka.Message{
		Key:        msg.OrderingKey,
		Value:      msg.Data,
		Attributes: msg.Attributes,
	})
}

func (s *kafkaSink) Close() error {
	return s.publisher.Close()
}
