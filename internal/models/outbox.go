package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// PendingServiceUpdate is a row of the pending_service_updates table.
type PendingServiceUpdate struct {
	ID            string          `db:"id"`
	EntryID       string          `db:"entry_id"`
	TargetService string          `db:"target_service"`
	Endpoint      string          `db:"endpoint"`
	Method        string          `db:"method"`
	Payload       json.RawMessage `db:"payload"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	MaxRetries    int             `db:"max_retries"`
	LastError     sql.NullString  `db:"last_error"`
	NextAttemptAt time.Time       `db:"next_attempt_at"`
	LockedUntil   sql.NullTime    `db:"locked_until"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// PostingSaga is a row of the posting_sagas table. Step holds the step name.
type PostingSaga struct {
	SagaID    string          `db:"saga_id"`
	EntryID   string          `db:"entry_id"`
	Step      string          `db:"step"`
	Status    string          `db:"status"`
	Context   json.RawMessage `db:"context"`
	LastError sql.NullString  `db:"last_error"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}
