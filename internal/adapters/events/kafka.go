package events

import (
	"context"
	"fmt"
	"log/slog"

	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes ledger events to Kafka. The topic is set per message and the
// entity id is the key, so events for one entry stay on one partition.
type KafkaPublisher struct {
	writer Writer
}

var _ portssvc.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for the given brokers.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write to %s: %w", topic, err)
	}
	slog.DebugContext(ctx, "Published ledger event", "driver", "kafka", "topic", topic, "key", key)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
