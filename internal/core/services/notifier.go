package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
)

// Notifier publishes ledger events. Delivery is best effort: failures are logged and
// returned as apperrors.ErrNotification, and callers never roll back because of them.
type Notifier struct {
	BaseService
	publisher portssvc.EventPublisher
	prefix    string
}

// NewNotifier creates a Notifier. topicPrefix is prepended to every topic, e.g. "prod.".
func NewNotifier(publisher portssvc.EventPublisher, topicPrefix string) *Notifier {
	return &Notifier{publisher: publisher, prefix: topicPrefix}
}

// Topic returns the fully qualified topic name.
func (n *Notifier) Topic(topic string) string {
	return n.prefix + topic
}

// Emit marshals payload to JSON and publishes it under key.
func (n *Notifier) Emit(ctx context.Context, topic, key string, payload any) error {
	if n == nil || n.publisher == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.LogError(ctx, err, "Failed to marshal event", slog.String("topic", topic))
		return fmt.Errorf("%w: marshal %s: %w", apperrors.ErrNotification, topic, err)
	}
	if err := n.publisher.Publish(ctx, n.Topic(topic), key, body); err != nil {
		n.LogError(ctx, err, "Failed to publish event",
			slog.String("topic", n.Topic(topic)),
			slog.String("key", key))
		return fmt.Errorf("%w: publish %s: %w", apperrors.ErrNotification, topic, err)
	}
	n.LogDebug(ctx, "Event published", slog.String("topic", n.Topic(topic)), slog.String("key", key))
	return nil
}
