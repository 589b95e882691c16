package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
)

type batchRepository struct {
	store *Store
}

var _ portsrepo.BatchRepositoryFacade = (*batchRepository)(nil)

func (r *batchRepository) FindBatchByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	var out *domain.Batch
	err := r.store.read(ctx, func(d *state) error {
		b, ok := d.batches[batchID]
		if !ok {
			return apperrors.NewNotFoundError("batch", batchID)
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *batchRepository) FindBatchItems(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	var out []domain.BatchItem
	err := r.store.read(ctx, func(d *state) error {
		if _, ok := d.batches[batchID]; !ok {
			return apperrors.NewNotFoundError("batch", batchID)
		}
		out = append([]domain.BatchItem{}, d.items[batchID]...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, err
}

func (r *batchRepository) ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.store.read(ctx, func(d *state) error {
		for _, b := range d.batches {
			if filter.Status != "" && b.Status != filter.Status {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].BatchNumber > out[j].BatchNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *batchRepository) SaveBatch(ctx context.Context, batch domain.Batch, items []domain.BatchItem) error {
	return r.store.write(ctx, "SaveBatch", func(d *state) error {
		if _, ok := d.batches[batch.BatchID]; ok {
			return apperrors.ErrDuplicate
		}
		for _, b := range d.batches {
			if b.BatchNumber == batch.BatchNumber {
				return apperrors.ErrNumberTaken
			}
		}
		batch.Items = nil
		d.batches[batch.BatchID] = batch
		d.items[batch.BatchID] = append([]domain.BatchItem(nil), items...)
		return nil
	})
}

func (r *batchRepository) AddItems(ctx context.Context, batchID string, items []domain.BatchItem) error {
	return r.store.write(ctx, "AddItems", func(d *state) error {
		if _, ok := d.batches[batchID]; !ok {
			return apperrors.NewNotFoundError("batch", batchID)
		}
		d.items[batchID] = append(append([]domain.BatchItem(nil), d.items[batchID]...), items...)
		return nil
	})
}

func (r *batchRepository) TransitionStatus(ctx context.Context, batchID string, from []domain.BatchStatus, to domain.BatchStatus, at time.Time) (bool, error) {
	moved := false
	err := r.store.write(ctx, "TransitionStatus", func(d *state) error {
		b, ok := d.batches[batchID]
		if !ok {
			return apperrors.NewNotFoundError("batch", batchID)
		}
		if !slices.Contains(from, b.Status) {
			return nil
		}
		b.Status = to
		b.LastUpdatedAt = at
		d.batches[batchID] = b
		moved = true
		return nil
	})
	return moved, err
}

func (r *batchRepository) UpdateBatch(ctx context.Context, batch domain.Batch) error {
	return r.store.write(ctx, "UpdateBatch", func(d *state) error {
		if _, ok := d.batches[batch.BatchID]; !ok {
			return apperrors.NewNotFoundError("batch", batch.BatchID)
		}
		batch.Items = nil
		d.batches[batch.BatchID] = batch
		return nil
	})
}

func (r *batchRepository) UpdateItem(ctx context.Context, item domain.BatchItem) error {
	return r.store.write(ctx, "UpdateItem", func(d *state) error {
		items := append([]domain.BatchItem(nil), d.items[item.BatchID]...)
		for i := range items {
			if items[i].ItemID == item.ItemID {
				items[i] = item
				d.items[item.BatchID] = items
				return nil
			}
		}
		return apperrors.NewNotFoundError("batch item", item.ItemID)
	})
}

func (r *batchRepository) ResetFailedItems(ctx context.Context, batchID string) (int, error) {
	moved := 0
	err := r.store.write(ctx, "ResetFailedItems", func(d *state) error {
		items := append([]domain.BatchItem(nil), d.items[batchID]...)
		for i := range items {
			if items[i].Status == domain.ItemFailed {
				items[i].Status = domain.ItemPending
				items[i].ErrorMessage = nil
				items[i].ProcessedAt = nil
				moved++
			}
		}
		d.items[batchID] = items
		return nil
	})
	return moved, err
}
