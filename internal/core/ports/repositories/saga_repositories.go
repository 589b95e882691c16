package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// SagaRepository stores the posting saga log.
type SagaRepository interface {
	SaveSaga(ctx context.Context, saga domain.PostingSaga) error
	UpdateSaga(ctx context.Context, saga domain.PostingSaga) error
	FindSagaByID(ctx context.Context, sagaID string) (*domain.PostingSaga, error)

	// ListStale returns IN_PROGRESS sagas last updated before cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.PostingSaga, error)
}
