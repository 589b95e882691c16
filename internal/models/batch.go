package models

import (
	"database/sql"
	"encoding/json"
)

// Batch is a row of the batches table.
type Batch struct {
	BatchID        string       `db:"batch_id"`
	BatchNumber    string       `db:"batch_number"`
	Description    string       `db:"description"`
	Status         string       `db:"status"`
	ItemCount      int          `db:"item_count"`
	ProcessedCount int          `db:"processed_count"`
	FailedCount    int          `db:"failed_count"`
	StartedAt      sql.NullTime `db:"started_at"`
	CompletedAt    sql.NullTime `db:"completed_at"`
	AuditFields
}

// BatchItem is a row of the batch_items table.
type BatchItem struct {
	ItemID       string          `db:"item_id"`
	BatchID      string          `db:"batch_id"`
	Sequence     int             `db:"sequence"`
	Command      json.RawMessage `db:"command"`
	Status       string          `db:"status"`
	EntryID      sql.NullString  `db:"entry_id"`
	ErrorMessage sql.NullString  `db:"error_message"`
	ProcessedAt  sql.NullTime    `db:"processed_at"`
}
