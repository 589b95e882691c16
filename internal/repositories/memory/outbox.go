package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
)

type outboxRepository struct {
	store *Store
}

var _ portsrepo.OutboxRepository = (*outboxRepository)(nil)

func claimable(u domain.PendingServiceUpdate, now time.Time) bool {
	switch u.Status {
	case domain.UpdatePending:
		return true
	case domain.UpdateProcessing:
		return u.LockedUntil == nil || u.LockedUntil.Before(now)
	}
	return false
}

func (r *outboxRepository) SaveUpdate(ctx context.Context, update domain.PendingServiceUpdate) error {
	return r.store.write(ctx, "SaveUpdate", func(d *state) error {
		if _, ok := d.updates[update.ID]; ok {
			return apperrors.ErrDuplicate
		}
		d.updates[update.ID] = update
		return nil
	})
}

func (r *outboxRepository) FindUpdateByID(ctx context.Context, id string) (*domain.PendingServiceUpdate, error) {
	var out *domain.PendingServiceUpdate
	err := r.store.read(ctx, func(d *state) error {
		u, ok := d.updates[id]
		if !ok {
			return apperrors.NewNotFoundError("pending service update", id)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.PendingServiceUpdate, error) {
	var claimed []domain.PendingServiceUpdate
	err := r.store.write(ctx, "ClaimDue", func(d *state) error {
		var due []domain.PendingServiceUpdate
		for _, u := range d.updates {
			if !claimable(u, now) {
				continue
			}
			if u.Status == domain.UpdatePending && u.NextAttemptAt.After(now) {
				continue
			}
			due = append(due, u)
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
				return due[i].CreatedAt.Before(due[j].CreatedAt)
			}
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		})
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		lockedUntil := now.Add(lease)
		for _, u := range due {
			u.Status = domain.UpdateProcessing
			u.LockedUntil = &lockedUntil
			u.UpdatedAt = now
			d.updates[u.ID] = u
			claimed = append(claimed, u)
		}
		return nil
	})
	return claimed, err
}

func (r *outboxRepository) ClaimByID(ctx context.Context, id string, now time.Time, lease time.Duration) (*domain.PendingServiceUpdate, error) {
	var out *domain.PendingServiceUpdate
	err := r.store.write(ctx, "ClaimByID", func(d *state) error {
		u, ok := d.updates[id]
		if !ok {
			return apperrors.NewNotFoundError("pending service update", id)
		}
		if !claimable(u, now) {
			return apperrors.NewConflictError("pending service update %s is %s", id, u.Status)
		}
		lockedUntil := now.Add(lease)
		u.Status = domain.UpdateProcessing
		u.LockedUntil = &lockedUntil
		u.UpdatedAt = now
		d.updates[id] = u
		out = &u
		return nil
	})
	return out, err
}

func (r *outboxRepository) SaveAttempt(ctx context.Context, update domain.PendingServiceUpdate) error {
	return r.store.write(ctx, "SaveAttempt", func(d *state) error {
		if _, ok := d.updates[update.ID]; !ok {
			return apperrors.NewNotFoundError("pending service update", update.ID)
		}
		d.updates[update.ID] = update
		return nil
	})
}

func (r *outboxRepository) DeleteByEntryID(ctx context.Context, entryID string) error {
	return r.store.write(ctx, "DeleteByEntryID", func(d *state) error {
		for id, u := range d.updates {
			if u.EntryID == entryID {
				delete(d.updates, id)
			}
		}
		return nil
	})
}

func (r *outboxRepository) ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.PendingServiceUpdate, error) {
	var out []domain.PendingServiceUpdate
	err := r.store.read(ctx, func(d *state) error {
		for _, u := range d.updates {
			if filter.Status != "" && u.Status != filter.Status {
				continue
			}
			if filter.EntryID != "" && u.EntryID != filter.EntryID {
				continue
			}
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, filter.Limit, 0), nil
}
