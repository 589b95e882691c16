package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus indicates the state of a journal entry.
type EntryStatus string

const (
	EntryDraft    EntryStatus = "DRAFT"
	EntryPosted   EntryStatus = "POSTED"
	EntryReversed EntryStatus = "REVERSED"
)

// SourceService names an external system a journal entry can originate from.
type SourceService string

const (
	SourcePayables    SourceService = "PAYABLES"
	SourceReceivables SourceService = "RECEIVABLES"
)

// SourceDocument links an entry to the invoice that produced it.
type SourceDocument struct {
	Service    SourceService `json:"service"`
	DocumentID string        `json:"documentID"`
}

// JournalEntry is a balanced set of debit and credit lines.
type JournalEntry struct {
	EntryID        string          `json:"entryID"`
	EntryNumber    string          `json:"entryNumber"`
	EntryDate      time.Time       `json:"entryDate"`
	Reference      string          `json:"reference"`
	Description    string          `json:"description"`
	Status         EntryStatus     `json:"status"`
	SourceDocument *SourceDocument `json:"sourceDocument,omitempty"`
	IdempotencyKey *string         `json:"idempotencyKey,omitempty"`
	ReversalOfID   *string         `json:"reversalOfID,omitempty"`
	ReversedByID   *string         `json:"reversedByID,omitempty"`
	Lines          []JournalLine   `json:"lines"`
	AuditFields
}

// JournalLine is a single debit or credit against one account.
type JournalLine struct {
	LineID      string          `json:"lineID"`
	EntryID     string          `json:"entryID"`
	LineNumber  int             `json:"lineNumber"`
	AccountID   string          `json:"accountID"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// Totals returns the summed debits and credits of the entry lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// AccountIDs returns the distinct account ids referenced by the lines, in first-seen order.
func (e JournalEntry) AccountIDs() []string {
	seen := make(map[string]struct{}, len(e.Lines))
	ids := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}

// EntryFilter narrows journal entry listings.
type EntryFilter struct {
	Status    EntryStatus
	From      *time.Time
	To        *time.Time
	AccountID string
	Limit     int
	NextToken *string
}
