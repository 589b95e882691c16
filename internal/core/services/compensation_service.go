package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/utils/accounting"
)

const recoveryBatchSize = 100

type compensationFunc func(ctx context.Context, saga domain.PostingSaga) error

// compensationService implements the CompensationSvc interface
type compensationService struct {
	BaseService
	txManager   portsrepo.TransactionManager
	journalRepo portsrepo.JournalRepositoryFacade
	accountRepo portsrepo.AccountRepositoryFacade
	outboxRepo  portsrepo.OutboxRepository
	sagaRepo    portsrepo.SagaRepository
	notifier    *Notifier

	steps            map[domain.PostingStep]compensationFunc
	recoveryAge      time.Duration
	recoveryInterval time.Duration
	now              func() time.Time
}

// CompensationServiceOption is a functional option for configuring the compensation service
type CompensationServiceOption func(*compensationService)

// WithCompensationNotifier sets the notifier used when recovery rolls a posting forward.
func WithCompensationNotifier(n *Notifier) CompensationServiceOption {
	return func(s *compensationService) { s.notifier = n }
}

// WithRecovery sets how old an IN_PROGRESS saga must be before recovery touches it and how often
// Run looks for such sagas.
func WithRecovery(age, interval time.Duration) CompensationServiceOption {
	return func(s *compensationService) {
		s.recoveryAge = age
		s.recoveryInterval = interval
	}
}

// WithCompensationClock overrides the time source.
func WithCompensationClock(now func() time.Time) CompensationServiceOption {
	return func(s *compensationService) { s.now = now }
}

// NewCompensationService creates the compensation manager.
func NewCompensationService(repos portsrepo.RepositoryProvider, options ...CompensationServiceOption) portssvc.CompensationSvc {
	svc := &compensationService{
		txManager:        repos.TxManager,
		journalRepo:      repos.JournalRepo,
		accountRepo:      repos.AccountRepo,
		outboxRepo:       repos.OutboxRepo,
		sagaRepo:         repos.SagaRepo,
		recoveryAge:      5 * time.Minute,
		recoveryInterval: time.Minute,
		now:              func() time.Time { return time.Now().UTC() },
	}
	svc.steps = map[domain.PostingStep]compensationFunc{
		domain.StepPersisted:       svc.discardEntry,
		domain.StepBalancesUpdated: svc.discardEntry,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.CompensationSvc = (*compensationService)(nil)

// Compensate undoes whatever the saga's step left behind and marks it COMPENSATED.
// Steps without a registered compensation have nothing durable to undo, or are past the
// point where the entry is kept.
func (s *compensationService) Compensate(ctx context.Context, saga domain.PostingSaga) error {
	if fn, ok := s.steps[saga.Step]; ok {
		if err := fn(ctx, saga); err != nil {
			s.LogError(ctx, err, "Compensation step failed",
				slog.String("saga_id", saga.SagaID),
				slog.String("step", saga.Step.String()))
			return fmt.Errorf("compensate %s at %s: %w", saga.EntryID, saga.Step, err)
		}
	}

	saga.Status = domain.SagaCompensated
	saga.UpdatedAt = s.now()
	if err := s.sagaRepo.UpdateSaga(ctx, saga); err != nil {
		return fmt.Errorf("failed to mark saga %s compensated: %w", saga.SagaID, err)
	}
	s.LogWarn(ctx, "Posting compensated",
		slog.String("saga_id", saga.SagaID),
		slog.String("entry_id", saga.EntryID),
		slog.String("step", saga.Step.String()))
	return nil
}

// discardEntry removes the entry, its outbox records and, for POSTED entries, its balance effect.
func (s *compensationService) discardEntry(ctx context.Context, saga domain.PostingSaga) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := s.journalRepo.FindEntryByID(txCtx, saga.EntryID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if entry.Status == domain.EntryPosted {
			accounts, err := s.accountRepo.FindAccountsByIDs(txCtx, entry.AccountIDs())
			if err != nil {
				return err
			}
			changes, err := accounting.BalanceChanges(entry.Lines, accounts)
			if err != nil {
				return err
			}
			for id, delta := range changes {
				changes[id] = delta.Neg()
			}
			if err := s.accountRepo.ApplyBalanceChanges(txCtx, changes, domain.SystemActor, s.now()); err != nil {
				return err
			}
		}

		if err := s.outboxRepo.DeleteByEntryID(txCtx, entry.EntryID); err != nil {
			return err
		}
		return s.journalRepo.DeleteEntry(txCtx, entry.EntryID)
	})
}

// RecoverStalled resolves postings whose process died mid-way. A committed entry is rolled
// forward, anything else is closed as compensated since its transaction never committed.
func (s *compensationService) RecoverStalled(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.recoveryAge)
	stale, err := s.sagaRepo.ListStale(ctx, cutoff, recoveryBatchSize)
	if err != nil {
		s.LogError(ctx, err, "Failed to list stalled sagas")
		return 0, err
	}

	resolved := 0
	for _, saga := range stale {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		entry, err := s.journalRepo.FindEntryByID(ctx, saga.EntryID)
		switch {
		case err == nil:
			if saga.Step < domain.StepNotified {
				s.emitRecovered(ctx, *entry)
			}
			saga.Step = domain.StepComplete
			saga.Status = domain.SagaCompleted
		case errors.Is(err, apperrors.ErrNotFound):
			saga.Status = domain.SagaCompensated
		default:
			s.LogError(ctx, err, "Failed to load entry for stalled saga", slog.String("saga_id", saga.SagaID))
			continue
		}

		saga.UpdatedAt = s.now()
		if err := s.sagaRepo.UpdateSaga(ctx, saga); err != nil {
			s.LogError(ctx, err, "Failed to resolve stalled saga", slog.String("saga_id", saga.SagaID))
			continue
		}
		resolved++
		s.LogInfo(ctx, "Stalled posting resolved",
			slog.String("saga_id", saga.SagaID),
			slog.String("entry_id", saga.EntryID),
			slog.String("status", string(saga.Status)))
	}
	return resolved, nil
}

func (s *compensationService) emitRecovered(ctx context.Context, entry domain.JournalEntry) {
	event := domain.EntryEvent{
		EntryID:     entry.EntryID,
		EntryNumber: entry.EntryNumber,
		Status:      entry.Status,
		EntryDate:   entry.EntryDate.Format(time.DateOnly),
		Reference:   entry.Reference,
	}
	_ = s.notifier.Emit(ctx, domain.TopicEntryCreated, entry.EntryID, event)
	if entry.Status == domain.EntryPosted {
		_ = s.notifier.Emit(ctx, domain.TopicEntryPosted, entry.EntryID, event)
	}
}

func (s *compensationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.recoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RecoverStalled(ctx); err != nil && ctx.Err() == nil {
				s.LogError(ctx, err, "Saga recovery pass failed")
			}
		}
	}
}
