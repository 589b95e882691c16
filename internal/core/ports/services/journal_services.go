package services

import (
	"context"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/dto"
)

// JournalReaderSvc defines read operations for journal entries
type JournalReaderSvc interface {
	// GetEntry retrieves an entry with its lines.
	GetEntry(ctx context.Context, entryID string) (*domain.JournalEntry, error)

	// ListEntries retrieves a page of entries.
	ListEntries(ctx context.Context, params dto.ListEntriesParams) (*dto.ListEntriesResponse, error)

	// CountEntries counts entries matching the filters.
	CountEntries(ctx context.Context, params dto.ListEntriesParams) (int, error)
}

// JournalPosterSvc posts entries to the ledger
type JournalPosterSvc interface {
	// PostEntry validates and atomically persists an entry, updating balances unless it is a draft.
	PostEntry(ctx context.Context, req dto.PostJournalEntryRequest) (*domain.JournalEntry, error)
}

// JournalWriterSvc defines the remaining write operations for journal entries
type JournalWriterSvc interface {
	// UpdateDraft replaces the content of a DRAFT entry.
	UpdateDraft(ctx context.Context, entryID string, req dto.PostJournalEntryRequest) (*domain.JournalEntry, error)

	// DeleteDraft removes a DRAFT entry.
	DeleteDraft(ctx context.Context, entryID string, actor string) error

	// PostDraft applies a DRAFT entry to balances and marks it POSTED.
	PostDraft(ctx context.Context, entryID string, actor string) (*domain.JournalEntry, error)

	// ReverseEntry creates a mirrored entry for a POSTED one and marks both REVERSED.
	ReverseEntry(ctx context.Context, entryID string, req dto.ReverseEntryRequest) (*domain.JournalEntry, error)
}

// JournalSvcFacade combines all journal-related service interfaces
type JournalSvcFacade interface {
	JournalReaderSvc
	JournalPosterSvc
	JournalWriterSvc
}

// CompensationSvc undoes partially applied postings.
type CompensationSvc interface {
	// Compensate runs the compensation registered for the saga's last step.
	Compensate(ctx context.Context, saga domain.PostingSaga) error

	// RecoverStalled resolves IN_PROGRESS sagas that have not moved since cutoff age and
	// returns how many it resolved.
	RecoverStalled(ctx context.Context) (int, error)

	// Run calls RecoverStalled on every recovery interval until ctx is done.
	Run(ctx context.Context)
}
