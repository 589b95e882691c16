package mapping

import (
	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/models"
)

// ToModelJournalEntry converts a domain JournalEntry header to a model JournalEntry.
// Lines are mapped separately with ToModelJournalLine.
func ToModelJournalEntry(d domain.JournalEntry) models.JournalEntry {
	m := models.JournalEntry{
		EntryID:        d.EntryID,
		EntryNumber:    d.EntryNumber,
		EntryDate:      d.EntryDate,
		Reference:      d.Reference,
		Description:    d.Description,
		Status:         string(d.Status),
		IdempotencyKey: NullString(d.IdempotencyKey),
		ReversalOfID:   NullString(d.ReversalOfID),
		ReversedByID:   NullString(d.ReversedByID),
		AuditFields:    ToModelAuditFields(d.AuditFields),
	}
	if d.SourceDocument != nil {
		service := string(d.SourceDocument.Service)
		m.SourceService = NullString(&service)
		m.SourceDocumentID = NullString(&d.SourceDocument.DocumentID)
	}
	return m
}

// ToDomainJournalEntry converts a model JournalEntry and its lines to a domain JournalEntry
func ToDomainJournalEntry(m models.JournalEntry, lines []models.JournalLine) domain.JournalEntry {
	d := domain.JournalEntry{
		EntryID:        m.EntryID,
		EntryNumber:    m.EntryNumber,
		EntryDate:      m.EntryDate.UTC(),
		Reference:      m.Reference,
		Description:    m.Description,
		Status:         domain.EntryStatus(m.Status),
		IdempotencyKey: StringPtr(m.IdempotencyKey),
		ReversalOfID:   StringPtr(m.ReversalOfID),
		ReversedByID:   StringPtr(m.ReversedByID),
		Lines:          make([]domain.JournalLine, len(lines)),
		AuditFields:    ToDomainAuditFields(m.AuditFields),
	}
	if m.SourceService.Valid && m.SourceDocumentID.Valid {
		d.SourceDocument = &domain.SourceDocument{
			Service:    domain.SourceService(m.SourceService.String),
			DocumentID: m.SourceDocumentID.String,
		}
	}
	for i, l := range lines {
		d.Lines[i] = ToDomainJournalLine(l)
	}
	return d
}

// ToModelJournalLine converts a domain JournalLine to a model JournalLine
func ToModelJournalLine(d domain.JournalLine) models.JournalLine {
	return models.JournalLine{
		LineID:      d.LineID,
		EntryID:     d.EntryID,
		LineNumber:  d.LineNumber,
		AccountID:   d.AccountID,
		Debit:       d.Debit,
		Credit:      d.Credit,
		Description: d.Description,
	}
}

// ToDomainJournalLine converts a model JournalLine to a domain JournalLine
func ToDomainJournalLine(m models.JournalLine) domain.JournalLine {
	return domain.JournalLine{
		LineID:      m.LineID,
		EntryID:     m.EntryID,
		LineNumber:  m.LineNumber,
		AccountID:   m.AccountID,
		Debit:       m.Debit,
		Credit:      m.Credit,
		Description: m.Description,
	}
}
