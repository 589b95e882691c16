package services

import (
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(
	cfg *config.Config,
	repos portsrepo.RepositoryProvider,
	publisher portssvc.EventPublisher,
	caller portssvc.ServiceCaller,
) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}
	notifier := NewNotifier(publisher, cfg.TopicPrefix)

	container.Account = NewAccountService(repos.TxManager, repos.AccountRepo)

	container.Outbox = NewOutboxService(
		repos.OutboxRepo,
		caller,
		WithBackoff(cfg.OutboxBaseDelay, cfg.OutboxMaxDelay),
		WithPolling(cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxLease),
	)

	container.Compensation = NewCompensationService(
		repos,
		WithCompensationNotifier(notifier),
		WithRecovery(cfg.SagaRecoveryAge, cfg.SagaRecoveryInterval),
	)

	// The posting engine depends on the registry, the compensator and the outbox.
	container.Journal = NewJournalService(
		repos,
		container.Account,
		WithJournalNotifier(notifier),
		WithCompensator(container.Compensation),
		WithOutboxDelivery(container.Outbox),
		WithSequenceRetries(cfg.SequenceMaxRetries),
		WithOutboxMaxRetries(cfg.OutboxMaxRetries),
	)

	container.Batch = NewBatchService(
		repos,
		container.Journal,
		WithBatchNotifier(notifier),
		WithStaleAfter(cfg.BatchStaleAfter),
		WithBatchSequenceRetries(cfg.SequenceMaxRetries),
	)

	container.Reporting = NewReportingService(repos.TxManager, repos.ReportingRepo)

	return container
}
