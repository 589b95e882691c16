package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountReader defines read operations for account data
type AccountReader interface {
	// FindAccountByID retrieves a specific account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountByCode retrieves an account by its unique chart-of-accounts code.
	FindAccountByCode(ctx context.Context, code string) (*domain.Account, error)

	// FindAccountsByIDs retrieves multiple accounts by their IDs. Missing ids are simply absent from the map.
	FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)

	// ListAccounts retrieves accounts matching the filter ordered by code.
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)

	// HasChildren reports whether any account names accountID as its parent.
	HasChildren(ctx context.Context, accountID string) (bool, error)

	// HasPostings reports whether any journal line references accountID.
	HasPostings(ctx context.Context, accountID string) (bool, error)
}

// AccountWriter defines write operations for account data
type AccountWriter interface {
	// SaveAccount persists a new account. A duplicate code yields apperrors.ErrDuplicate.
	SaveAccount(ctx context.Context, account domain.Account) error

	// UpdateAccount updates an existing account's details (not its balance).
	UpdateAccount(ctx context.Context, account domain.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(ctx context.Context, accountID string) error
}

// AccountBalanceWriter applies posting deltas. It must be called inside RunInTx.
type AccountBalanceWriter interface {
	// LockAccounts locks the given accounts in id order until the transaction ends and
	// returns their current state. Missing ids are absent from the map.
	LockAccounts(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)

	// ApplyBalanceChanges locks the affected accounts in id order and adds each delta to its balance.
	ApplyBalanceChanges(ctx context.Context, changes map[string]decimal.Decimal, actor string, at time.Time) error
}

// AccountRepositoryFacade combines all account-related repository interfaces
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
	AccountBalanceWriter
}
