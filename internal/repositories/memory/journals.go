package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/general_ledger/internal/utils/pagination"
)

type journalRepository struct {
	store *Store
}

var _ portsrepo.JournalRepositoryFacade = (*journalRepository)(nil)

func copyEntry(e domain.JournalEntry) *domain.JournalEntry {
	e.Lines = append([]domain.JournalLine(nil), e.Lines...)
	return &e
}

func (r *journalRepository) FindEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	var out *domain.JournalEntry
	err := r.store.read(ctx, func(d *state) error {
		e, ok := d.entries[entryID]
		if !ok {
			return apperrors.NewNotFoundError("journal entry", entryID)
		}
		out = copyEntry(e)
		return nil
	})
	return out, err
}

func (r *journalRepository) FindEntryByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error) {
	var out *domain.JournalEntry
	err := r.store.read(ctx, func(d *state) error {
		for _, e := range d.entries {
			if e.IdempotencyKey != nil && *e.IdempotencyKey == key {
				out = copyEntry(e)
				return nil
			}
		}
		return apperrors.NewNotFoundError("journal entry with idempotency key", key)
	})
	return out, err
}

func matchesEntry(e domain.JournalEntry, f domain.EntryFilter) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.From != nil && e.EntryDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.EntryDate.After(*f.To) {
		return false
	}
	if f.AccountID != "" {
		for _, l := range e.Lines {
			if l.AccountID == f.AccountID {
				return true
			}
		}
		return false
	}
	return true
}

func (r *journalRepository) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]domain.JournalEntry, *string, error) {
	var cursorDate time.Time
	var cursorNumber string
	if filter.NextToken != nil && *filter.NextToken != "" {
		var err error
		cursorDate, cursorNumber, err = pagination.DecodeToken(*filter.NextToken)
		if err != nil {
			return nil, nil, apperrors.NewValidationError("%v", err)
		}
	}

	var out []domain.JournalEntry
	err := r.store.read(ctx, func(d *state) error {
		for _, e := range d.entries {
			if !matchesEntry(e, filter) {
				continue
			}
			if cursorNumber != "" && !pagination.After(e.EntryDate, e.EntryNumber, cursorDate, cursorNumber) {
				continue
			}
			out = append(out, *copyEntry(e))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return pagination.After(out[j].EntryDate, out[j].EntryNumber, out[i].EntryDate, out[i].EntryNumber)
	})

	var next *string
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
		last := out[len(out)-1]
		token := pagination.EncodeToken(last.EntryDate, last.EntryNumber)
		next = &token
	}
	if out == nil {
		out = []domain.JournalEntry{}
	}
	return out, next, nil
}

func (r *journalRepository) CountEntries(ctx context.Context, filter domain.EntryFilter) (int, error) {
	count := 0
	err := r.store.read(ctx, func(d *state) error {
		for _, e := range d.entries {
			if matchesEntry(e, filter) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *journalRepository) SaveEntry(ctx context.Context, entry domain.JournalEntry) error {
	return r.store.write(ctx, "SaveEntry", func(d *state) error {
		if _, ok := d.entries[entry.EntryID]; ok {
			return apperrors.ErrDuplicate
		}
		for _, e := range d.entries {
			if e.EntryNumber == entry.EntryNumber {
				return apperrors.ErrNumberTaken
			}
			if entry.IdempotencyKey != nil && e.IdempotencyKey != nil && *e.IdempotencyKey == *entry.IdempotencyKey {
				return apperrors.ErrDuplicate
			}
		}
		d.entries[entry.EntryID] = *copyEntry(entry)
		return nil
	})
}

func (r *journalRepository) UpdateEntryStatus(ctx context.Context, entryID string, status domain.EntryStatus, reversalOfID, reversedByID *string, actor string, at time.Time) error {
	return r.store.write(ctx, "UpdateEntryStatus", func(d *state) error {
		e, ok := d.entries[entryID]
		if !ok {
			return apperrors.NewNotFoundError("journal entry", entryID)
		}
		e.Status = status
		if reversalOfID != nil {
			e.ReversalOfID = reversalOfID
		}
		if reversedByID != nil {
			e.ReversedByID = reversedByID
		}
		e.LastUpdatedAt = at
		e.LastUpdatedBy = actor
		d.entries[entryID] = e
		return nil
	})
}

func (r *journalRepository) ReplaceDraft(ctx context.Context, entry domain.JournalEntry) error {
	return r.store.write(ctx, "ReplaceDraft", func(d *state) error {
		existing, ok := d.entries[entry.EntryID]
		if !ok {
			return apperrors.NewNotFoundError("journal entry", entry.EntryID)
		}
		if existing.Status != domain.EntryDraft {
			return apperrors.NewConflictError("journal entry %s is %s, not DRAFT", entry.EntryID, existing.Status)
		}
		entry.EntryNumber = existing.EntryNumber
		entry.Status = existing.Status
		entry.CreatedAt = existing.CreatedAt
		entry.CreatedBy = existing.CreatedBy
		d.entries[entry.EntryID] = *copyEntry(entry)
		return nil
	})
}

func (r *journalRepository) DeleteEntry(ctx context.Context, entryID string) error {
	return r.store.write(ctx, "DeleteEntry", func(d *state) error {
		if _, ok := d.entries[entryID]; !ok {
			return apperrors.NewNotFoundError("journal entry", entryID)
		}
		delete(d.entries, entryID)
		return nil
	})
}
