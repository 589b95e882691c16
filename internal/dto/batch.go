package dto

import "encoding/json"

// CreateBatchRequest carries the raw entry commands of a new batch.
// Each command must decode into a PostJournalEntryRequest; decoding happens per item at execution.
type CreateBatchRequest struct {
	Description string            `json:"description" validate:"max=500"`
	Commands    []json.RawMessage `json:"commands"`
	Actor       string            `json:"actor,omitempty"`
}
