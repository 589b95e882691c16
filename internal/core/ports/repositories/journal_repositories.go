package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// JournalReader defines read operations for journal entries
type JournalReader interface {
	// FindEntryByID retrieves an entry with its lines ordered by line number.
	FindEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error)

	// FindEntryByIdempotencyKey retrieves the entry posted under key, if any.
	FindEntryByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error)

	// ListEntries retrieves a page of entries (with lines) ordered by entry date and number.
	// It returns the entries and a token for the next page.
	ListEntries(ctx context.Context, filter domain.EntryFilter) ([]domain.JournalEntry, *string, error)

	// CountEntries counts entries matching the filter, ignoring paging fields.
	CountEntries(ctx context.Context, filter domain.EntryFilter) (int, error)
}

// JournalWriter defines write operations for journal entries
type JournalWriter interface {
	// SaveEntry inserts an entry and all its lines. A duplicate entry number or idempotency key
	// yields apperrors.ErrDuplicate.
	SaveEntry(ctx context.Context, entry domain.JournalEntry) error

	// UpdateEntryStatus moves an entry to status and records reversal links when given.
	UpdateEntryStatus(ctx context.Context, entryID string, status domain.EntryStatus, reversalOfID, reversedByID *string, actor string, at time.Time) error

	// ReplaceDraft overwrites the header fields and lines of a DRAFT entry.
	ReplaceDraft(ctx context.Context, entry domain.JournalEntry) error

	// DeleteEntry removes an entry and its lines.
	DeleteEntry(ctx context.Context, entryID string) error
}

// JournalRepositoryFacade combines all journal-related repository interfaces
type JournalRepositoryFacade interface {
	JournalReader
	JournalWriter
}
