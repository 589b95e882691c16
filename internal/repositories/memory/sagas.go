package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
)

type sagaRepository struct {
	store *Store
}

var _ portsrepo.SagaRepository = (*sagaRepository)(nil)

func (r *sagaRepository) SaveSaga(ctx context.Context, saga domain.PostingSaga) error {
	return r.store.write(ctx, "SaveSaga", func(d *state) error {
		if _, ok := d.sagas[saga.SagaID]; ok {
			return apperrors.ErrDuplicate
		}
		d.sagas[saga.SagaID] = saga
		return nil
	})
}

func (r *sagaRepository) UpdateSaga(ctx context.Context, saga domain.PostingSaga) error {
	return r.store.write(ctx, "UpdateSaga", func(d *state) error {
		if _, ok := d.sagas[saga.SagaID]; !ok {
			return apperrors.NewNotFoundError("posting saga", saga.SagaID)
		}
		d.sagas[saga.SagaID] = saga
		return nil
	})
}

func (r *sagaRepository) FindSagaByID(ctx context.Context, sagaID string) (*domain.PostingSaga, error) {
	var out *domain.PostingSaga
	err := r.store.read(ctx, func(d *state) error {
		s, ok := d.sagas[sagaID]
		if !ok {
			return apperrors.NewNotFoundError("posting saga", sagaID)
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *sagaRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.PostingSaga, error) {
	var out []domain.PostingSaga
	err := r.store.read(ctx, func(d *state) error {
		for _, s := range d.sagas {
			if s.Status == domain.SagaInProgress && s.UpdatedAt.Before(cutoff) {
				out = append(out, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return paginate(out, limit, 0), nil
}
