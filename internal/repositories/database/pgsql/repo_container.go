package pgsql

import (
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:     newPgxTxManager(dbPool),
		AccountRepo:   newPgxAccountRepository(dbPool),
		JournalRepo:   newPgxJournalRepository(dbPool),
		BatchRepo:     newPgxBatchRepository(dbPool),
		OutboxRepo:    newPgxOutboxRepository(dbPool),
		SagaRepo:      newPgxSagaRepository(dbPool),
		SequenceRepo:  newPgxSequenceRepository(dbPool),
		ReportingRepo: newReportingRepository(dbPool),
	}
}
