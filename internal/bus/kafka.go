package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"tenantcore/internal/platform/config"
	"tenantcore/pkg/domain"
	"tenantcore/pkg/event"
	"tenantcore/pkg/platform/sentinel"
)

// Record header keys.
const (
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
	HeaderScope         = "scope"
)

// KafkaPublisher writes events to a Kafka topic as JSON records. The record
// key is the aggregate id so each aggregate's events land on one partition in
// order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers in cfg and, when enabled, makes
// sure the topic exists.
func NewKafkaPublisher(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if !cfg.UsesKafka() {
		return nil, errors.New("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	if cfg.EnsureTopic {
		if err := EnsureTopic(ctx, kadm.NewClient(client), cfg.Topic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
			client.Close()
			return nil, err
		}
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

// EnsureTopic creates topic when it does not exist yet.
func EnsureTopic(ctx context.Context, adm *kadm.Client, topic string, partitions int32, replicationFactor int16) error {
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces events synchronously and waits for every acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		r, err := encodeRecord(p.topic, e)
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		p.logger.ErrorContext(ctx, "event publish failed", "topic", p.topic, "count", len(records), "error", err)
		return fmt.Errorf("produce %d events: %w: %w", len(records), sentinel.ErrUnavailable, err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func encodeRecord(topic string, e event.Event) (*kgo.Record, error) {
	value, err := json.Marshal(event.ToRecord(e))
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(e.AggregateID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(e.Type)},
			{Key: HeaderAggregateType, Value: []byte(e.AggregateType)},
			{Key: HeaderScope, Value: []byte(e.Scope().Identifier())},
		},
	}, nil
}

// DecodeRecord rebuilds the event carried by a Kafka record.
func DecodeRecord(in *domain.Interner, r *kgo.Record) (event.Event, error) {
	var rec event.Record
	if err := json.Unmarshal(r.Value, &rec); err != nil {
		return event.Event{}, fmt.Errorf("decode record at offset %d: %w", r.Offset, err)
	}
	return event.FromRecord(in, rec)
}
