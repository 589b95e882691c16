package pgsql

import (
	"context"
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

const batchColumns = `batch_id, batch_number, description, status, item_count, processed_count, failed_count,
	started_at, completed_at, created_at, created_by, last_updated_at, last_updated_by`

const insertItemQuery = `
	INSERT INTO batch_items (item_id, batch_id, sequence, command, status, entry_id, error_message, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

type PgxBatchRepository struct {
	BaseRepository
}

func newPgxBatchRepository(pool *pgxpool.Pool) portsrepo.BatchRepositoryFacade {
	return &PgxBatchRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.BatchRepositoryFacade = (*PgxBatchRepository)(nil)

func scanBatch(row pgx.Row) (models.Batch, error) {
	var m models.Batch
	err := row.Scan(
		&m.BatchID,
		&m.BatchNumber,
		&m.Description,
		&m.Status,
		&m.ItemCount,
		&m.ProcessedCount,
		&m.FailedCount,
		&m.StartedAt,
		&m.CompletedAt,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

func queueItems(batch *pgx.Batch, items []domain.BatchItem) {
	for _, item := range items {
		m := mapping.ToModelBatchItem(item)
		batch.Queue(insertItemQuery, m.ItemID, m.BatchID, m.Sequence, m.Command, m.Status, m.EntryID, m.ErrorMessage, m.ProcessedAt)
	}
}

// FindBatchByID retrieves a batch without its items.
func (r *PgxBatchRepository) FindBatchByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	m, err := scanBatch(r.db(ctx).QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_id = $1;`, batchID))
	if err != nil {
		return nil, mapError(err, "batch %s", batchID)
	}
	d := mapping.ToDomainBatch(m)
	return &d, nil
}

// FindBatchItems retrieves the items of a batch ordered by sequence.
func (r *PgxBatchRepository) FindBatchItems(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	rows, err := r.db(ctx).Query(ctx, `
		SELECT item_id, batch_id, sequence, command, status, entry_id, error_message, processed_at
		FROM batch_items
		WHERE batch_id = $1
		ORDER BY sequence;`, batchID)
	if err != nil {
		return nil, mapError(err, "failed to query items of batch %s", batchID)
	}
	defer rows.Close()

	items := []domain.BatchItem{}
	for rows.Next() {
		var m models.BatchItem
		if err := rows.Scan(&m.ItemID, &m.BatchID, &m.Sequence, &m.Command, &m.Status, &m.EntryID, &m.ErrorMessage, &m.ProcessedAt); err != nil {
			return nil, mapError(err, "failed to scan batch item")
		}
		items = append(items, mapping.ToDomainBatchItem(m))
	}
	return items, mapError(rows.Err(), "error iterating batch items")
}

// ListBatches retrieves batches newest first.
func (r *PgxBatchRepository) ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at DESC, batch_number DESC"
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
		return nil, mapError(err, "failed to list batches")
	}
	defer rows.Close()

	out := []domain.Batch{}
	for rows.Next() {
		m, err := scanBatch(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan batch")
		}
		out = append(out, mapping.ToDomainBatch(m))
	}
	return out, mapError(rows.Err(), "error iterating batches")
}

// SaveBatch inserts a batch together with its initial items.
func (r *PgxBatchRepository) SaveBatch(ctx context.Context, b domain.Batch, items []domain.BatchItem) error {
	m := mapping.ToModelBatch(b)
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`,
		m.BatchID,
		m.BatchNumber,
		m.Description,
		m.Status,
		m.ItemCount,
		m.ProcessedCount,
		m.FailedCount,
		m.StartedAt,
		m.CompletedAt,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	queueItems(batch, items)
	if err := r.db(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "failed to save batch %s", m.BatchNumber)
	}
	return nil
}

// AddItems appends items to an existing batch.
func (r *PgxBatchRepository) AddItems(ctx context.Context, batchID string, items []domain.BatchItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	queueItems(batch, items)
	if err := r.db(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "failed to add items to batch %s", batchID)
	}
	return nil
}

// TransitionStatus is a compare-and-set on the batch status.
func (r *PgxBatchRepository) TransitionStatus(ctx context.Context, batchID string, from []domain.BatchStatus, to domain.BatchStatus, at time.Time) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	q := r.db(ctx)
	tag, err := q.Exec(ctx, `
		UPDATE batches SET status = $1, last_updated_at = $2
		WHERE batch_id = $3 AND status = ANY($4);`, string(to), at, batchID, allowed)
	if err != nil {
		return false, mapError(err, "failed to transition batch %s", batchID)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM batches WHERE batch_id = $1);`, batchID).Scan(&exists); err != nil {
		return false, mapError(err, "failed to look up batch %s", batchID)
	}
	if !exists {
		return false, apperrors.NewNotFoundError("batch", batchID)
	}
	return false, nil
}

// UpdateBatch persists status, counters and timestamps.
func (r *PgxBatchRepository) UpdateBatch(ctx context.Context, b domain.Batch) error {
	m := mapping.ToModelBatch(b)
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE batches
		SET description = $1, status = $2, item_count = $3, processed_count = $4, failed_count = $5,
		    started_at = $6, completed_at = $7, last_updated_at = $8, last_updated_by = $9
		WHERE batch_id = $10;`,
		m.Description, m.Status, m.ItemCount, m.ProcessedCount, m.FailedCount,
		m.StartedAt, m.CompletedAt, m.LastUpdatedAt, m.LastUpdatedBy, m.BatchID)
	if err != nil {
		return mapError(err, "failed to update batch %s", m.BatchID)
	}
	return expectOne(tag, "batch", m.BatchID)
}

// UpdateItem persists the status and outcome of one item.
func (r *PgxBatchRepository) UpdateItem(ctx context.Context, item domain.BatchItem) error {
	m := mapping.ToModelBatchItem(item)
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE batch_items
		SET status = $1, entry_id = $2, error_message = $3, processed_at = $4
		WHERE item_id = $5;`,
		m.Status, m.EntryID, m.ErrorMessage, m.ProcessedAt, m.ItemID)
	if err != nil {
		return mapError(err, "failed to update batch item %s", m.ItemID)
	}
	return expectOne(tag, "batch item", m.ItemID)
}

// ResetFailedItems moves the FAILED items of a batch back to PENDING.
func (r *PgxBatchRepository) ResetFailedItems(ctx context.Context, batchID string) (int, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE batch_items
		SET status = 'PENDING', error_message = NULL, processed_at = NULL
		WHERE batch_id = $1 AND status = 'FAILED';`, batchID)
	if err != nil {
		return 0, mapError(err, "failed to reset failed items of batch %s", batchID)
	}
	return int(tag.RowsAffected()), nil
}
