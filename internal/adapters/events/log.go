package events

import (
	"context"
	"log/slog"

	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
)

// LogPublisher writes events to the structured log. It is the default when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

var _ portssvc.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	p.logger.InfoContext(ctx, "Ledger event", "topic", topic, "key", key, "payload", string(payload))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
