package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

// HeaderIdempotencyKey carries Notification.IdempotencyKey so consumers can dedupe without decoding.
const HeaderIdempotencyKey = "idempotency_key"

// HeaderAudience tells donor e-mails apart from admin alerts.
const HeaderAudience = "audience"

// Publisher is the Kafka implementation of the NotificationSink port.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

var _ ports.NotificationSink = (*Publisher)(nil)

// NewPublisher creates a Kafka producer and checks the connection.
func NewPublisher(ctx context.Context, bootstrapServers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(bootstrapServers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish waits for the broker acknowledgement. A failure is returned so the webhook
// answers 500 and the provider redelivers.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) error {
	record, err := NewRecord(p.topic, n)
	if err != nil {
		return err
	}

	results := p.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		p.logger.Error("failed to deliver notification to kafka", "topic", p.topic, "kind", n.Kind, "error", err)
		return fmt.Errorf("kafka produce: %w", err)
	}

	r := results[0].Record
	p.logger.Debug("notification delivered to kafka", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
	return nil
}

// Close flushes pending records and stops the producer.
func (p *Publisher) Close() {
	p.logger.Info("flushing kafka producer...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush did not complete", "error", err)
	}
	p.client.Close()
	p.logger.Info("kafka client stopped")
}

// NewRecord encodes a notification keyed by provider transaction id, so events of one
// charge stay ordered within a partition.
func NewRecord(topic string, n domain.Notification) (*kgo.Record, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(n.ProviderTransactionID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: HeaderIdempotencyKey, Value: []byte(n.IdempotencyKey)},
			{Key: HeaderAudience, Value: []byte(n.Audience)},
		},
	}, nil
}

// DecodeRecord is the inverse of NewRecord.
func DecodeRecord(r *kgo.Record) (domain.Notification, error) {
	var n domain.Notification
	if err := json.Unmarshal(r.Value, &n); err != nil {
		return domain.Notification{}, fmt.Errorf("failed to decode notification at offset %d: %w", r.Offset, err)
	}
	return n, nil
}

// Header returns the value of a record header, or "".
func Header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
