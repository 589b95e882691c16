package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is a row of the journal_entries table.
type JournalEntry struct {
	EntryID          string         `db:"entry_id"`
	EntryNumber      string         `db:"entry_number"`
	EntryDate        time.Time      `db:"entry_date"`
	Reference        string         `db:"reference"`
	Description      string         `db:"description"`
	Status           string         `db:"status"`
	SourceService    sql.NullString `db:"source_service"`
	SourceDocumentID sql.NullString `db:"source_document_id"`
	IdempotencyKey   sql.NullString `db:"idempotency_key"`
	ReversalOfID     sql.NullString `db:"reversal_of_id"`
	ReversedByID     sql.NullString `db:"reversed_by_id"`
	AuditFields
}

// JournalLine is a row of the journal_lines table.
type JournalLine struct {
	LineID      string          `db:"line_id"`
	EntryID     string          `db:"entry_id"`
	LineNumber  int             `db:"line_number"`
	AccountID   string          `db:"account_id"`
	Debit       decimal.Decimal `db:"debit"`
	Credit      decimal.Decimal `db:"credit"`
	Description string          `db:"description"`
}
