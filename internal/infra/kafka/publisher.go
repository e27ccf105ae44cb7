// Package kafka publishes deposit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
)

// DefaultTopic receives deposit events when none is configured.
const DefaultTopic = "deposits"

const transport = "kafka"

// Config holds producer settings.
type Config struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Publisher sends each deposit event as JSON, keyed by transaction hash so
// updates for one deposit stay on one partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// NewPublisher connects a synchronous producer to the brokers.
func NewPublisher(cfg Config) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		log:      slog.Default().With("component", "kafka", "topic", topic),
	}
}

func (p *Publisher) Name() string { return transport }

// Deliver publishes one event. Invalidations are published too so consumers
// can retract what they saw.
func (p *Publisher) Deliver(ctx context.Context, event *domain.DepositEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal deposit event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Deposit.Hash),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.NotificationsFailed.WithLabelValues(transport).Inc()
		return fmt.Errorf("failed to publish deposit %s: %w", event.Deposit.Hash, err)
	}

	metrics.NotificationsSent.WithLabelValues(transport).Inc()
	p.log.Debug("deposit event published",
		"hash", event.Deposit.Hash,
		"event", event.EventType,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
