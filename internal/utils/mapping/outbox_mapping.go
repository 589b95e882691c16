package mapping

import (
	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/models"
)

// ToModelPendingServiceUpdate converts a domain PendingServiceUpdate to a model PendingServiceUpdate
func ToModelPendingServiceUpdate(d domain.PendingServiceUpdate) models.PendingServiceUpdate {
	return models.PendingServiceUpdate{
		ID:            d.ID,
		EntryID:       d.EntryID,
		TargetService: string(d.TargetService),
		Endpoint:      d.Endpoint,
		Method:        d.Method,
		Payload:       d.Payload,
		Status:        string(d.Status),
		RetryCount:    d.RetryCount,
		MaxRetries:    d.MaxRetries,
		LastError:     NullString(d.LastError),
		NextAttemptAt: d.NextAttemptAt,
		LockedUntil:   NullTime(d.LockedUntil),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ToDomainPendingServiceUpdate converts a model PendingServiceUpdate to a domain PendingServiceUpdate
func ToDomainPendingServiceUpdate(m models.PendingServiceUpdate) domain.PendingServiceUpdate {
	return domain.PendingServiceUpdate{
		ID:            m.ID,
		EntryID:       m.EntryID,
		TargetService: domain.SourceService(m.TargetService),
		Endpoint:      m.Endpoint,
		Method:        m.Method,
		Payload:       m.Payload,
		Status:        domain.UpdateStatus(m.Status),
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		LastError:     StringPtr(m.LastError),
		NextAttemptAt: m.NextAttemptAt.UTC(),
		LockedUntil:   TimePtr(m.LockedUntil),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

// ToModelPostingSaga converts a domain PostingSaga to a model PostingSaga
func ToModelPostingSaga(d domain.PostingSaga) models.PostingSaga {
	return models.PostingSaga{
		SagaID:    d.SagaID,
		EntryID:   d.EntryID,
		Step:      d.Step.String(),
		Status:    string(d.Status),
		Context:   d.Context,
		LastError: NullString(d.LastError),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ToDomainPostingSaga converts a model PostingSaga to a domain PostingSaga.
// An unknown step name maps to StepReceived.
func ToDomainPostingSaga(m models.PostingSaga) domain.PostingSaga {
	step, _ := domain.ParsePostingStep(m.Step)
	return domain.PostingSaga{
		SagaID:    m.SagaID,
		EntryID:   m.EntryID,
		Step:      step,
		Status:    domain.SagaStatus(m.Status),
		Context:   m.Context,
		LastError: StringPtr(m.LastError),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}
