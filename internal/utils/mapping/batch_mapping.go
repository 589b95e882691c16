package mapping

import (
	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/models"
)

// ToModelBatch converts a domain Batch to a model Batch. Items are not included.
func ToModelBatch(d domain.Batch) models.Batch {
	return models.Batch{
		BatchID:        d.BatchID,
		BatchNumber:    d.BatchNumber,
		Description:    d.Description,
		Status:         string(d.Status),
		ItemCount:      d.ItemCount,
		ProcessedCount: d.ProcessedCount,
		FailedCount:    d.FailedCount,
		StartedAt:      NullTime(d.StartedAt),
		CompletedAt:    NullTime(d.CompletedAt),
		AuditFields:    ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainBatch converts a model Batch to a domain Batch
func ToDomainBatch(m models.Batch) domain.Batch {
	return domain.Batch{
		BatchID:        m.BatchID,
		BatchNumber:    m.BatchNumber,
		Description:    m.Description,
		Status:         domain.BatchStatus(m.Status),
		ItemCount:      m.ItemCount,
		ProcessedCount: m.ProcessedCount,
		FailedCount:    m.FailedCount,
		StartedAt:      TimePtr(m.StartedAt),
		CompletedAt:    TimePtr(m.CompletedAt),
		AuditFields:    ToDomainAuditFields(m.AuditFields),
	}
}

// ToModelBatchItem converts a domain BatchItem to a model BatchItem
func ToModelBatchItem(d domain.BatchItem) models.BatchItem {
	return models.BatchItem{
		ItemID:       d.ItemID,
		BatchID:      d.BatchID,
		Sequence:     d.Sequence,
		Command:      d.Command,
		Status:       string(d.Status),
		EntryID:      NullString(d.EntryID),
		ErrorMessage: NullString(d.ErrorMessage),
		ProcessedAt:  NullTime(d.ProcessedAt),
	}
}

// ToDomainBatchItem converts a model BatchItem to a domain BatchItem
func ToDomainBatchItem(m models.BatchItem) domain.BatchItem {
	return domain.BatchItem{
		ItemID:       m.ItemID,
		BatchID:      m.BatchID,
		Sequence:     m.Sequence,
		Command:      m.Command,
		Status:       domain.ItemStatus(m.Status),
		EntryID:      StringPtr(m.EntryID),
		ErrorMessage: StringPtr(m.ErrorMessage),
		ProcessedAt:  TimePtr(m.ProcessedAt),
	}
}
