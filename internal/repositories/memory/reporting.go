package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

type reportingRepository struct {
	store *Store
}

var _ portsrepo.ReportingRepository = (*reportingRepository)(nil)

func (r *reportingRepository) SumActivity(ctx context.Context, q domain.ActivityQuery) ([]domain.AccountActivity, error) {
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []domain.EntryStatus{domain.EntryPosted}
	}

	var out []domain.AccountActivity
	err := r.store.read(ctx, func(d *state) error {
		index := map[string]int{}
		for _, acc := range d.accounts {
			if len(q.AccountIDs) > 0 && !slices.Contains(q.AccountIDs, acc.AccountID) {
				continue
			}
			if len(q.AccountTypes) > 0 && !slices.Contains(q.AccountTypes, acc.AccountType) {
				continue
			}
			if len(q.Subtypes) > 0 && !slices.Contains(q.Subtypes, acc.Subtype) {
				continue
			}
			if q.ActiveOnly && !acc.IsActive {
				continue
			}
			index[acc.AccountID] = len(out)
			out = append(out, domain.AccountActivity{
				AccountID:   acc.AccountID,
				Code:        acc.Code,
				Name:        acc.Name,
				AccountType: acc.AccountType,
				Subtype:     acc.Subtype,
				Debit:       decimal.Zero,
				Credit:      decimal.Zero,
			})
		}

		for _, e := range d.entries {
			if !slices.Contains(statuses, e.Status) {
				continue
			}
			if q.From != nil && e.EntryDate.Before(*q.From) {
				continue
			}
			if q.To != nil && e.EntryDate.After(*q.To) {
				continue
			}
			for _, l := range e.Lines {
				i, ok := index[l.AccountID]
				if !ok {
					continue
				}
				out[i].Debit = out[i].Debit.Add(l.Debit)
				out[i].Credit = out[i].Credit.Add(l.Credit)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if out == nil {
		out = []domain.AccountActivity{}
	}
	return out, nil
}
