package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/general_ledger/internal/models"
	"github.com/SscSPs/general_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const updateColumns = `id, entry_id, target_service, endpoint, method, payload, status, retry_count, max_retries,
	last_error, next_attempt_at, locked_until, created_at, updated_at`

// claimableCondition matches PENDING records and PROCESSING records whose lease ran out.
const claimableCondition = `(status = 'PENDING' OR (status = 'PROCESSING' AND (locked_until IS NULL OR locked_until < $1)))`

type PgxOutboxRepository struct {
	BaseRepository
}

func newPgxOutboxRepository(pool *pgxpool.Pool) portsrepo.OutboxRepository {
	return &PgxOutboxRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.OutboxRepository = (*PgxOutboxRepository)(nil)

func scanUpdate(row pgx.Row) (models.PendingServiceUpdate, error) {
	var m models.PendingServiceUpdate
	err := row.Scan(
		&m.ID,
		&m.EntryID,
		&m.TargetService,
		&m.Endpoint,
		&m.Method,
		&m.Payload,
		&m.Status,
		&m.RetryCount,
		&m.MaxRetries,
		&m.LastError,
		&m.NextAttemptAt,
		&m.LockedUntil,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func collectUpdates(rows pgx.Rows) ([]domain.PendingServiceUpdate, error) {
	defer rows.Close()
	out := []domain.PendingServiceUpdate{}
	for rows.Next() {
		m, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mapping.ToDomainPendingServiceUpdate(m))
	}
	return out, rows.Err()
}

// SaveUpdate inserts a new record.
func (r *PgxOutboxRepository) SaveUpdate(ctx context.Context, update domain.PendingServiceUpdate) error {
	m := mapping.ToModelPendingServiceUpdate(update)
	_, err := r.db(ctx).Exec(ctx, `INSERT INTO pending_service_updates (`+updateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`,
		m.ID,
		m.EntryID,
		m.TargetService,
		m.Endpoint,
		m.Method,
		m.Payload,
		m.Status,
		m.RetryCount,
		m.MaxRetries,
		m.LastError,
		m.NextAttemptAt,
		m.LockedUntil,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return mapError(err, "failed to save pending service update %s", m.ID)
}

// FindUpdateByID retrieves one record.
func (r *PgxOutboxRepository) FindUpdateByID(ctx context.Context, id string) (*domain.PendingServiceUpdate, error) {
	m, err := scanUpdate(r.db(ctx).QueryRow(ctx, `SELECT `+updateColumns+` FROM pending_service_updates WHERE id = $1;`, id))
	if err != nil {
		return nil, mapError(err, "pending service update %s", id)
	}
	d := mapping.ToDomainPendingServiceUpdate(m)
	return &d, nil
}

// ClaimDue leases due records. SKIP LOCKED lets several dispatchers share the table.
func (r *PgxOutboxRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.PendingServiceUpdate, error) {
	query := `
		UPDATE pending_service_updates
		SET status = 'PROCESSING', locked_until = $2, updated_at = $1
		WHERE id IN (
			SELECT id FROM pending_service_updates
			WHERE ` + claimableCondition + ` AND (status <> 'PENDING' OR next_attempt_at <= $1)
			ORDER BY next_attempt_at, created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + updateColumns + `;`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, mapError(err, "failed to claim due updates")
	}
	out, err := collectUpdates(rows)
	return out, mapError(err, "failed to scan claimed updates")
}

// ClaimByID leases one record regardless of its next attempt time.
func (r *PgxOutboxRepository) ClaimByID(ctx context.Context, id string, now time.Time, lease time.Duration) (*domain.PendingServiceUpdate, error) {
	query := `
		UPDATE pending_service_updates
		SET status = 'PROCESSING', locked_until = $2, updated_at = $1
		WHERE id = $3 AND ` + claimableCondition + `
		RETURNING ` + updateColumns + `;`
	m, err := scanUpdate(r.db(ctx).QueryRow(ctx, query, now, now.Add(lease), id))
	if err == nil {
		d := mapping.ToDomainPendingServiceUpdate(m)
		return &d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapError(err, "failed to claim pending service update %s", id)
	}

	current, ferr := r.FindUpdateByID(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	return nil, apperrors.NewConflictError("pending service update %s is %s", id, current.Status)
}

// SaveAttempt persists the outcome of a delivery attempt.
func (r *PgxOutboxRepository) SaveAttempt(ctx context.Context, update domain.PendingServiceUpdate) error {
	m := mapping.ToModelPendingServiceUpdate(update)
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE pending_service_updates
		SET status = $1, retry_count = $2, last_error = $3, next_attempt_at = $4, locked_until = $5, updated_at = $6
		WHERE id = $7;`,
		m.Status, m.RetryCount, m.LastError, m.NextAttemptAt, m.LockedUntil, m.UpdatedAt, m.ID)
	if err != nil {
		return mapError(err, "failed to save attempt for %s", m.ID)
	}
	return expectOne(tag, "pending service update", m.ID)
}

// DeleteByEntryID removes all records for an entry.
func (r *PgxOutboxRepository) DeleteByEntryID(ctx context.Context, entryID string) error {
	_, err := r.db(ctx).Exec(ctx, `DELETE FROM pending_service_updates WHERE entry_id = $1;`, entryID)
	return mapError(err, "failed to delete pending service updates of entry %s", entryID)
}

// ListUpdates retrieves records oldest first.
func (r *PgxOutboxRepository) ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.PendingServiceUpdate, error) {
	query := `SELECT ` + updateColumns + ` FROM pending_service_updates WHERE TRUE`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.EntryID != "" {
		args = append(args, filter.EntryID)
		query += fmt.Sprintf(" AND entry_id = $%d", len(args))
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to list pending service updates")
	}
	out, err := collectUpdates(rows)
	return out, mapError(err, "failed to scan pending service updates")
}
