package services

import (
	"context"

	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// OutboxSvcFacade delivers pending service updates with retries.
type OutboxSvcFacade interface {
	// DeliverNow attempts one record immediately. Failures are recorded on the record, not returned.
	DeliverNow(ctx context.Context, updateID string)

	// DispatchDue delivers every due record once and returns how many were attempted.
	DispatchDue(ctx context.Context) (int, error)

	// Run calls DispatchDue on every poll interval until ctx is done.
	Run(ctx context.Context)

	// ListUpdates returns records matching the filter.
	ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.PendingServiceUpdate, error)

	// Requeue moves a FAILED record back to PENDING with a fresh retry budget.
	Requeue(ctx context.Context, updateID string) error
}
