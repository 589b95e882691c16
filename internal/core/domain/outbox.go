package domain

import (
	"encoding/json"
	"time"
)

// UpdateStatus is the delivery state of a pending service update.
type UpdateStatus string

const (
	UpdatePending    UpdateStatus = "PENDING"
	UpdateProcessing UpdateStatus = "PROCESSING"
	UpdateCompleted  UpdateStatus = "COMPLETED"
	UpdateFailed     UpdateStatus = "FAILED"
)

// PendingServiceUpdate is a durable notification to an external invoice service.
type PendingServiceUpdate struct {
	ID            string          `json:"id"`
	EntryID       string          `json:"entryID"`
	TargetService SourceService   `json:"targetService"`
	Endpoint      string          `json:"endpoint"`
	Method        string          `json:"method"`
	Payload       json.RawMessage `json:"payload"`
	Status        UpdateStatus    `json:"status"`
	RetryCount    int             `json:"retryCount"`
	MaxRetries    int             `json:"maxRetries"`
	LastError     *string         `json:"lastError,omitempty"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LockedUntil   *time.Time      `json:"lockedUntil,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MarkJournalizedPayload is the body sent to invoice services once an entry is posted.
type MarkJournalizedPayload struct {
	JournalEntryID string      `json:"journalEntryId"`
	Status         EntryStatus `json:"status"`
}

// UpdateFilter narrows outbox listings.
type UpdateFilter struct {
	Status  UpdateStatus
	EntryID string
	Limit   int
}
