package pgsql

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/general_ledger/internal/models"
	"github.com/SscSPs/general_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const accountColumns = `account_id, code, name, account_type, subtype, parent_account_id, description, is_active, balance,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxAccountRepository struct {
	BaseRepository
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) portsrepo.AccountRepositoryFacade {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxAccountRepository implements portsrepo.AccountRepositoryFacade
var _ portsrepo.AccountRepositoryFacade = (*PgxAccountRepository)(nil)

func scanAccount(row pgx.Row) (models.Account, error) {
	var m models.Account
	err := row.Scan(
		&m.AccountID,
		&m.Code,
		&m.Name,
		&m.AccountType,
		&m.Subtype,
		&m.ParentAccountID,
		&m.Description,
		&m.IsActive,
		&m.Balance,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

func collectAccounts(rows pgx.Rows) ([]domain.Account, error) {
	defer rows.Close()
	var ms []models.Account
	for rows.Next() {
		m, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mapping.ToDomainAccountSlice(ms), nil
}

// SaveAccount inserts a new account.
func (r *PgxAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`

	_, err := r.db(ctx).Exec(ctx, query,
		m.AccountID,
		m.Code,
		m.Name,
		m.AccountType,
		m.Subtype,
		m.ParentAccountID,
		m.Description,
		m.IsActive,
		m.Balance,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	return mapError(err, "failed to save account %s", m.Code)
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	m, err := scanAccount(r.db(ctx).QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, mapError(err, "account %s", accountID)
	}
	d := mapping.ToDomainAccount(m)
	return &d, nil
}

// FindAccountByCode retrieves an account by its chart code.
func (r *PgxAccountRepository) FindAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE code = $1;`
	m, err := scanAccount(r.db(ctx).QueryRow(ctx, query, code))
	if err != nil {
		return nil, mapError(err, "account with code %s", code)
	}
	d := mapping.ToDomainAccount(m)
	return &d, nil
}

// FindAccountsByIDs retrieves multiple accounts by their IDs.
func (r *PgxAccountRepository) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ANY($1);`
	rows, err := r.db(ctx).Query(ctx, query, accountIDs)
	if err != nil {
		return nil, mapError(err, "failed to query accounts by IDs")
	}
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, mapError(err, "failed to scan accounts")
	}
	out := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		out[a.AccountID] = a
	}
	return out, nil
}

// ListAccounts retrieves accounts matching the filter ordered by code.
func (r *PgxAccountRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.AccountType != "" {
		add("account_type = $%d", string(filter.AccountType))
	}
	if filter.Subtype != "" {
		add("subtype = $%d", string(filter.Subtype))
	}
	if filter.ParentAccountID != nil {
		add("parent_account_id = $%d", *filter.ParentAccountID)
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY code"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to list accounts")
	}
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, mapError(err, "failed to scan accounts")
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

// HasChildren reports whether any account names accountID as its parent.
func (r *PgxAccountRepository) HasChildren(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_account_id = $1);`, accountID).Scan(&exists)
	return exists, mapError(err, "failed to check children of account %s", accountID)
}

// HasPostings reports whether any journal line references accountID.
func (r *PgxAccountRepository) HasPostings(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id = $1);`, accountID).Scan(&exists)
	return exists, mapError(err, "failed to check postings of account %s", accountID)
}

// UpdateAccount updates the descriptive fields of an account. The balance is left alone.
func (r *PgxAccountRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)
	query := `
		UPDATE accounts
		SET name = $1, subtype = $2, parent_account_id = $3, description = $4, is_active = $5,
		    last_updated_at = $6, last_updated_by = $7
		WHERE account_id = $8;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.Name,
		m.Subtype,
		m.ParentAccountID,
		m.Description,
		m.IsActive,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
		m.AccountID,
	)
	if err != nil {
		return mapError(err, "failed to update account %s", m.AccountID)
	}
	return expectOne(tag, "account", m.AccountID)
}

// DeleteAccount removes an account.
func (r *PgxAccountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM accounts WHERE account_id = $1;`, accountID)
	if err != nil {
		return mapError(err, "failed to delete account %s", accountID)
	}
	return expectOne(tag, "account", accountID)
}

// LockAccounts takes row locks on the accounts in id order and returns them.
func (r *PgxAccountRepository) LockAccounts(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE;`
	rows, err := r.db(ctx).Query(ctx, query, accountIDs)
	if err != nil {
		return nil, mapError(err, "failed to lock accounts")
	}
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, mapError(err, "failed to lock accounts")
	}
	out := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		out[a.AccountID] = a
	}
	return out, nil
}

// ApplyBalanceChanges locks the affected rows in id order, then adds each delta.
func (r *PgxAccountRepository) ApplyBalanceChanges(ctx context.Context, changes map[string]decimal.Decimal, actor string, at time.Time) error {
	if len(changes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	q := r.db(ctx)
	rows, err := q.Query(ctx, `SELECT account_id FROM accounts WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE;`, ids)
	if err != nil {
		return mapError(err, "failed to lock accounts")
	}
	locked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return mapError(err, "failed to lock accounts")
	}
	if len(locked) != len(ids) {
		return mapError(pgx.ErrNoRows, "one or more accounts of %v", ids)
	}

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`UPDATE accounts SET balance = balance + $1, last_updated_at = $2, last_updated_by = $3 WHERE account_id = $4;`,
			changes[id], at, actor, id)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "failed to update account balances")
	}
	return nil
}
