package dto

import (
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// JournalLineRequest is one debit or credit of an entry command.
// Exactly one of Debit or Credit must be positive.
type JournalLineRequest struct {
	AccountID   string          `json:"accountID" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=500"`
}

// SourceDocumentRequest references the invoice an entry journalizes.
type SourceDocumentRequest struct {
	Service    domain.SourceService `json:"service" validate:"required,oneof=PAYABLES RECEIVABLES"`
	DocumentID string               `json:"documentID" validate:"required,max=100"`
}

// PostJournalEntryRequest is the command accepted by the posting engine and stored on batch items.
type PostJournalEntryRequest struct {
	EntryDate      time.Time              `json:"entryDate" validate:"required"`
	Reference      string                 `json:"reference" validate:"max=100"`
	Description    string                 `json:"description" validate:"max=500"`
	Lines          []JournalLineRequest   `json:"lines" validate:"dive"`
	SourceDocument *SourceDocumentRequest `json:"sourceDocument,omitempty"`
	IdempotencyKey *string                `json:"idempotencyKey,omitempty" validate:"omitempty,max=100"`
	Draft          bool                   `json:"draft"`
	Actor          string                 `json:"actor,omitempty"`
}

// ToDomainLines converts request lines into unsaved journal lines numbered from 1.
func (r PostJournalEntryRequest) ToDomainLines(entryID string) []domain.JournalLine {
	lines := make([]domain.JournalLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = domain.JournalLine{
			EntryID:     entryID,
			LineNumber:  i + 1,
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		}
	}
	return lines
}

// ReverseEntryRequest asks for a mirrored entry cancelling a posted one.
type ReverseEntryRequest struct {
	EntryDate *time.Time `json:"entryDate,omitempty"`
	Reason    string     `json:"reason" validate:"max=500"`
	Actor     string     `json:"actor,omitempty"`
}

// ListEntriesParams defines the filters for listing journal entries.
type ListEntriesParams struct {
	Status    domain.EntryStatus `form:"status" validate:"omitempty,oneof=DRAFT POSTED REVERSED"`
	From      *time.Time         `form:"from"`
	To        *time.Time         `form:"to"`
	AccountID string             `form:"accountID"`
	Limit     int                `form:"limit" validate:"omitempty,min=1,max=500"`
	NextToken *string            `form:"nextToken"`
}

// ListEntriesResponse is one page of entries.
type ListEntriesResponse struct {
	Entries   []domain.JournalEntry `json:"entries"`
	NextToken *string               `json:"nextToken,omitempty"`
}
