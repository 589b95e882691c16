package services

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/general_ledger/internal/utils/sequence"
)

// runNumbered runs fn in a transaction together with the next number of the prefix series
// for date. When fn fails with ErrNumberTaken the counter is advanced outside the failed
// transaction and the whole unit is retried, up to attempts times, then ErrConflict.
// Other duplicates are returned as they are. A day holds at most sequence.MaxValue numbers.
func runNumbered(
	ctx context.Context,
	txm portsrepo.TransactionManager,
	seq portsrepo.SequenceRepository,
	prefix string,
	date time.Time,
	attempts int,
	fn func(txCtx context.Context, number string) error,
) error {
	if attempts < 1 {
		attempts = 1
	}
	dateKey := sequence.DateKey(date)
	for attempt := 1; ; attempt++ {
		err := txm.RunInTx(ctx, func(txCtx context.Context) error {
			value, err := seq.NextValue(txCtx, prefix, dateKey)
			if err != nil {
				return err
			}
			if value > sequence.MaxValue {
				return apperrors.NewConflictError("%s numbering for %s is exhausted", prefix, dateKey)
			}
			return fn(txCtx, sequence.Format(prefix, date, value))
		})
		if !errors.Is(err, apperrors.ErrNumberTaken) {
			return err
		}
		if attempt >= attempts {
			return apperrors.NewConflictError("could not allocate a unique %s number after %d attempts", prefix, attempts)
		}
		if _, err := seq.NextValue(ctx, prefix, dateKey); err != nil {
			return err
		}
	}
}
