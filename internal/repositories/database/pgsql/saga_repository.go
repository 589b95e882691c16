package pgsql

import (
	"context"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/general_ledger/internal/models"
	"github.com/SscSPs/general_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sagaColumns = `saga_id, entry_id, step, status, context, last_error, created_at, updated_at`

type PgxSagaRepository struct {
	BaseRepository
}

func newPgxSagaRepository(pool *pgxpool.Pool) portsrepo.SagaRepository {
	return &PgxSagaRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.SagaRepository = (*PgxSagaRepository)(nil)

func scanSaga(row pgx.Row) (models.PostingSaga, error) {
	var m models.PostingSaga
	err := row.Scan(&m.SagaID, &m.EntryID, &m.Step, &m.Status, &m.Context, &m.LastError, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *PgxSagaRepository) SaveSaga(ctx context.Context, saga domain.PostingSaga) error {
	m := mapping.ToModelPostingSaga(saga)
	_, err := r.db(ctx).Exec(ctx, `INSERT INTO posting_sagas (`+sagaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
		m.SagaID, m.EntryID, m.Step, m.Status, m.Context, m.LastError, m.CreatedAt, m.UpdatedAt)
	return mapError(err, "failed to save posting saga %s", m.SagaID)
}

func (r *PgxSagaRepository) UpdateSaga(ctx context.Context, saga domain.PostingSaga) error {
	m := mapping.ToModelPostingSaga(saga)
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE posting_sagas
		SET entry_id = $1, step = $2, status = $3, context = $4, last_error = $5, updated_at = $6
		WHERE saga_id = $7;`,
		m.EntryID, m.Step, m.Status, m.Context, m.LastError, m.UpdatedAt, m.SagaID)
	if err != nil {
		return mapError(err, "failed to update posting saga %s", m.SagaID)
	}
	return expectOne(tag, "posting saga", m.SagaID)
}

func (r *PgxSagaRepository) FindSagaByID(ctx context.Context, sagaID string) (*domain.PostingSaga, error) {
	m, err := scanSaga(r.db(ctx).QueryRow(ctx, `SELECT `+sagaColumns+` FROM posting_sagas WHERE saga_id = $1;`, sagaID))
	if err != nil {
		return nil, mapError(err, "posting saga %s", sagaID)
	}
	d := mapping.ToDomainPostingSaga(m)
	return &d, nil
}

// ListStale returns IN_PROGRESS sagas last updated before cutoff, oldest first.
func (r *PgxSagaRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.PostingSaga, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx, `
		SELECT `+sagaColumns+` FROM posting_sagas
		WHERE status = 'IN_PROGRESS' AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2;`, cutoff, limit)
	if err != nil {
		return nil, mapError(err, "failed to list stale sagas")
	}
	defer rows.Close()

	out := []domain.PostingSaga{}
	for rows.Next() {
		m, err := scanSaga(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan posting saga")
		}
		out = append(out, mapping.ToDomainPostingSaga(m))
	}
	return out, mapError(rows.Err(), "error iterating posting sagas")
}
