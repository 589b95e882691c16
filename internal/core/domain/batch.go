package domain

import (
	"encoding/json"
	"time"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchDraft      BatchStatus = "DRAFT"
	BatchPending    BatchStatus = "PENDING"
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// ItemStatus is the lifecycle state of a single batch item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "PENDING"
	ItemProcessing ItemStatus = "PROCESSING"
	ItemCompleted  ItemStatus = "COMPLETED"
	ItemFailed     ItemStatus = "FAILED"
)

// Batch groups journal entry commands that are executed together.
type Batch struct {
	BatchID        string      `json:"batchID"`
	BatchNumber    string      `json:"batchNumber"`
	Description    string      `json:"description"`
	Status         BatchStatus `json:"status"`
	ItemCount      int         `json:"itemCount"`
	ProcessedCount int         `json:"processedCount"`
	FailedCount    int         `json:"failedCount"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	Items          []BatchItem `json:"items,omitempty"`
	AuditFields
}

// BatchItem holds one raw entry command and its execution outcome.
type BatchItem struct {
	ItemID       string          `json:"itemID"`
	BatchID      string          `json:"batchID"`
	Sequence     int             `json:"sequence"`
	Command      json.RawMessage `json:"command"`
	Status       ItemStatus      `json:"status"`
	EntryID      *string         `json:"entryID,omitempty"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	Status BatchStatus
	Limit  int
	Offset int
}

// BatchItemError reports the failure of one item in a batch summary.
type BatchItemError struct {
	ItemID   string `json:"itemID"`
	Sequence int    `json:"sequence"`
	Message  string `json:"message"`
}

// BatchSummary is the outcome of one batch execution.
type BatchSummary struct {
	BatchID        string           `json:"batchID"`
	BatchNumber    string           `json:"batchNumber"`
	Success        bool             `json:"success"`
	Status         BatchStatus      `json:"status"`
	ItemCount      int              `json:"itemCount"`
	ProcessedCount int              `json:"processedCount"`
	FailedCount    int              `json:"failedCount"`
	Errors         []BatchItemError `json:"errors"`
}
