package pgsql

import (
	"context"

	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxSequenceRepository struct {
	BaseRepository
}

func newPgxSequenceRepository(pool *pgxpool.Pool) portsrepo.SequenceRepository {
	return &PgxSequenceRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.SequenceRepository = (*PgxSequenceRepository)(nil)

// NextValue upserts the counter row. Inside a transaction the row lock is held until commit,
// which serialises numbering per prefix and day.
func (r *PgxSequenceRepository) NextValue(ctx context.Context, prefix, dateKey string) (int64, error) {
	var next int64
	err := r.db(ctx).QueryRow(ctx, `
		INSERT INTO sequences (prefix, date_key, value) VALUES ($1, $2, 1)
		ON CONFLICT (prefix, date_key) DO UPDATE SET value = sequences.value + 1
		RETURNING value;`, prefix, dateKey).Scan(&next)
	return next, mapError(err, "failed to advance sequence %s/%s", prefix, dateKey)
}
