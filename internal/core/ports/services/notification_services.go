package services

import (
	"context"
	"encoding/json"
)

// EventPublisher sends ledger events to the notification channel.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// ServiceRequest is one authenticated call to an external invoice service.
type ServiceRequest struct {
	Service        string
	Method         string
	Endpoint       string
	Payload        json.RawMessage
	IdempotencyKey string
}

// ServiceCaller performs authenticated calls to external invoice services.
type ServiceCaller interface {
	Call(ctx context.Context, req ServiceRequest) error
}
