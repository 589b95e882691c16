package services

import (
	"context"
	"encoding/json"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/dto"
)

// BatchSvcFacade creates and executes batches of entry commands.
type BatchSvcFacade interface {
	// CreateBatch stores a batch with one PENDING item per command.
	CreateBatch(ctx context.Context, req dto.CreateBatchRequest) (*domain.Batch, error)

	// AddItems appends commands to a DRAFT or PENDING batch.
	AddItems(ctx context.Context, batchID string, commands []json.RawMessage) (*domain.Batch, error)

	// ExecuteBatch posts every outstanding item in order and returns the summary.
	ExecuteBatch(ctx context.Context, batchID string) (*domain.BatchSummary, error)

	// RetryBatch re-runs the failed or interrupted items of a finished batch.
	RetryBatch(ctx context.Context, batchID string) (*domain.BatchSummary, error)

	// GetBatch retrieves a batch with its items.
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)

	// ListBatches retrieves batches matching the filter.
	ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error)
}
