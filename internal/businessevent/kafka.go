package businessevent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

// KafkaPublisher writes events to one topic keyed by loan id, so events of a
// loan stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("loan-engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("NewKafkaPublisher: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e domain.BusinessEvent) error {
	rec := Record(e)
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("Publish %s: %w", e.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// Record builds the Kafka record for e. The topic is left to the client.
func Record(e domain.BusinessEvent) *kgo.Record {
	return &kgo.Record{
		Key:   []byte(e.LoanID.String()),
		Value: e.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "event_type", Value: []byte(e.Type)},
		},
		Timestamp: e.OccurredAt,
	}
}

// LogPublisher logs events instead of sending them. It stands in when no
// brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.BusinessEvent) error {
	p.logger.InfoContext(ctx, "business event",
		"event_id", e.ID,
		"type", e.Type,
		"loan_id", e.LoanID,
		"from", e.FromStatus.String(),
		"to", e.ToStatus.String(),
		"event", e.Event,
	)
	return nil
}
