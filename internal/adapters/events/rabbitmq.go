package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange ledger events are published to.
const DefaultExchange = "ledger.events"

// RabbitMQPublisher publishes ledger events to a durable topic exchange using the
// event topic as routing key.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	chn      *amqp.Channel
	exchange string
}

var _ portssvc.EventPublisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher dials the broker and declares the exchange.
func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	err = chn.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQPublisher{conn: conn, chn: chn, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.chn.PublishWithContext(ctx,
		p.exchange, // exchange
		topic,      // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish to %s: %w", topic, err)
	}
	slog.DebugContext(ctx, "Published ledger event", "driver", "rabbitmq", "topic", topic, "key", key)
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.chn.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
