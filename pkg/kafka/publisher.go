package kafka

import (
	"context"
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
)

// Message is a broker-neutral record handed to Publish.
type Message struct {
	Key        string
	Value      []byte
	Attributes map[string]string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes ledger events to a single Kafka topic.
// Records are keyed by club so one club's events stay on one partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

func NewPublisher(cfg config.KafkaConfig, topic string) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
	return &Publisher{writer: writer, topic: topic}, nil
}

func (p *Publisher) Topic() string {
	return p.topic
}

// Publish blocks until the brokers acknowledge the record.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka publisher not initialized")
	}
	return p.writer.WriteMessages(ctx, toKafkaMessage(msg))
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func toKafkaMessage(msg Message) kafka.Message {
	out := kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Attributes {
		out.Headers = append(out.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}
