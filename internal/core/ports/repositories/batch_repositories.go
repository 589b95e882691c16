package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// BatchReader defines read operations for batches
type BatchReader interface {
	// FindBatchByID retrieves a batch without its items.
	FindBatchByID(ctx context.Context, batchID string) (*domain.Batch, error)

	// FindBatchItems retrieves the items of a batch ordered by sequence.
	FindBatchItems(ctx context.Context, batchID string) ([]domain.BatchItem, error)

	// ListBatches retrieves batches newest first.
	ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error)
}

// BatchWriter defines write operations for batches
type BatchWriter interface {
	// SaveBatch inserts a batch together with its initial items.
	SaveBatch(ctx context.Context, batch domain.Batch, items []domain.BatchItem) error

	// AddItems appends items to an existing batch.
	AddItems(ctx context.Context, batchID string, items []domain.BatchItem) error

	// TransitionStatus sets the batch status to `to` only when its current status is one of `from`.
	// It reports whether the row was updated.
	TransitionStatus(ctx context.Context, batchID string, from []domain.BatchStatus, to domain.BatchStatus, at time.Time) (bool, error)

	// UpdateBatch persists status, counters and timestamps.
	UpdateBatch(ctx context.Context, batch domain.Batch) error

	// UpdateItem persists the status and outcome of one item.
	UpdateItem(ctx context.Context, item domain.BatchItem) error

	// ResetFailedItems moves the FAILED items of a batch back to PENDING and returns how many moved.
	ResetFailedItems(ctx context.Context, batchID string) (int, error)
}

// BatchRepositoryFacade combines all batch-related repository interfaces
type BatchRepositoryFacade interface {
	BatchReader
	BatchWriter
}
