package repositories

import (
	"context"

	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// ReportingRepository defines operations for retrieving financial report data
type ReportingRepository interface {
	// SumActivity returns debit and credit totals per account for the lines selected by the query.
	// Every account matching the account filters is returned, with zero totals when it has no activity.
	SumActivity(ctx context.Context, query domain.ActivityQuery) ([]domain.AccountActivity, error)
}
