package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

type accountRepository struct {
	store *Store
}

var _ portsrepo.AccountRepositoryFacade = (*accountRepository)(nil)

func (r *accountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.read(ctx, func(d *state) error {
		acc, ok := d.accounts[accountID]
		if !ok {
			return apperrors.NewNotFoundError("account", accountID)
		}
		out = &acc
		return nil
	})
	return out, err
}

func (r *accountRepository) FindAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.read(ctx, func(d *state) error {
		for _, acc := range d.accounts {
			if acc.Code == code {
				a := acc
				out = &a
				return nil
			}
		}
		return apperrors.NewNotFoundError("account code", code)
	})
	return out, err
}

func (r *accountRepository) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	out := make(map[string]domain.Account, len(accountIDs))
	err := r.store.read(ctx, func(d *state) error {
		for _, id := range accountIDs {
			if acc, ok := d.accounts[id]; ok {
				out[id] = acc
			}
		}
		return nil
	})
	return out, err
}

func (r *accountRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	var out []domain.Account
	err := r.store.read(ctx, func(d *state) error {
		for _, acc := range d.accounts {
			if filter.AccountType != "" && acc.AccountType != filter.AccountType {
				continue
			}
			if filter.Subtype != "" && acc.Subtype != filter.Subtype {
				continue
			}
			if filter.ParentAccountID != nil && (acc.ParentAccountID == nil || *acc.ParentAccountID != *filter.ParentAccountID) {
				continue
			}
			if filter.ActiveOnly && !acc.IsActive {
				continue
			}
			out = append(out, acc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *accountRepository) HasChildren(ctx context.Context, accountID string) (bool, error) {
	found := false
	err := r.store.read(ctx, func(d *state) error {
		for _, acc := range d.accounts {
			if acc.ParentAccountID != nil && *acc.ParentAccountID == accountID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *accountRepository) HasPostings(ctx context.Context, accountID string) (bool, error) {
	found := false
	err := r.store.read(ctx, func(d *state) error {
		for _, e := range d.entries {
			for _, l := range e.Lines {
				if l.AccountID == accountID {
					found = true
					return nil
				}
			}
		}
		return nil
	})
	return found, err
}

func (r *accountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	return r.store.write(ctx, "SaveAccount", func(d *state) error {
		if _, ok := d.accounts[account.AccountID]; ok {
			return apperrors.ErrDuplicate
		}
		for _, acc := range d.accounts {
			if acc.Code == account.Code {
				return apperrors.ErrDuplicate
			}
		}
		d.accounts[account.AccountID] = account
		return nil
	})
}

func (r *accountRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	return r.store.write(ctx, "UpdateAccount", func(d *state) error {
		existing, ok := d.accounts[account.AccountID]
		if !ok {
			return apperrors.NewNotFoundError("account", account.AccountID)
		}
		account.Balance = existing.Balance
		account.Code = existing.Code
		d.accounts[account.AccountID] = account
		return nil
	})
}

// DeleteAccount refuses accounts that are still referenced, like the foreign keys of the SQL schema.
func (r *accountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	return r.store.write(ctx, "DeleteAccount", func(d *state) error {
		if _, ok := d.accounts[accountID]; !ok {
			return apperrors.NewNotFoundError("account", accountID)
		}
		for _, acc := range d.accounts {
			if acc.ParentAccountID != nil && *acc.ParentAccountID == accountID {
				return apperrors.NewConflictError("account %s is the parent of %s", accountID, acc.AccountID)
			}
		}
		for _, e := range d.entries {
			for _, l := range e.Lines {
				if l.AccountID == accountID {
					return apperrors.NewConflictError("account %s is referenced by entry %s", accountID, e.EntryID)
				}
			}
		}
		delete(d.accounts, accountID)
		return nil
	})
}

// LockAccounts returns the accounts under the write lock, which the enclosing transaction holds.
func (r *accountRepository) LockAccounts(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	out := make(map[string]domain.Account, len(accountIDs))
	err := r.store.write(ctx, "LockAccounts", func(d *state) error {
		for _, id := range accountIDs {
			if acc, ok := d.accounts[id]; ok {
				out[id] = acc
			}
		}
		return nil
	})
	return out, err
}

func (r *accountRepository) ApplyBalanceChanges(ctx context.Context, changes map[string]decimal.Decimal, actor string, at time.Time) error {
	return r.store.write(ctx, "ApplyBalanceChanges", func(d *state) error {
		for id := range changes {
			if _, ok := d.accounts[id]; !ok {
				return apperrors.NewNotFoundError("account", id)
			}
		}
		for id, delta := range changes {
			acc := d.accounts[id]
			acc.Balance = acc.Balance.Add(delta)
			acc.LastUpdatedAt = at
			acc.LastUpdatedBy = actor
			d.accounts[id] = acc
		}
		return nil
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		return []T{}
	}
	return items
}
