package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/SscSPs/general_ledger/internal/utils/accounting"
	"github.com/SscSPs/general_ledger/internal/utils/sequence"
	"github.com/google/uuid"
)

const (
	defaultSequenceRetries  = 3
	defaultOutboxMaxRetries = 5
)

// journalService implements the JournalSvcFacade interface
type journalService struct {
	BaseService
	txManager    portsrepo.TransactionManager
	journalRepo  portsrepo.JournalRepositoryFacade
	accountRepo  portsrepo.AccountBalanceWriter
	sequenceRepo portsrepo.SequenceRepository
	outboxRepo   portsrepo.OutboxRepository
	sagaRepo     portsrepo.SagaRepository
	accountSvc   portssvc.AccountReaderSvc
	compensator  portssvc.CompensationSvc
	outbox       portssvc.OutboxSvcFacade
	notifier     *Notifier

	sequenceRetries  int
	outboxMaxRetries int
	now              func() time.Time
}

// JournalServiceOption is a functional option for configuring the journal service
type JournalServiceOption func(*journalService)

// WithJournalNotifier sets the event notifier.
func WithJournalNotifier(n *Notifier) JournalServiceOption {
	return func(s *journalService) { s.notifier = n }
}

// WithOutboxDelivery enables immediate delivery of outbox records after commit.
func WithOutboxDelivery(outbox portssvc.OutboxSvcFacade) JournalServiceOption {
	return func(s *journalService) { s.outbox = outbox }
}

// WithCompensator sets the compensation manager used when a posting fails.
func WithCompensator(c portssvc.CompensationSvc) JournalServiceOption {
	return func(s *journalService) { s.compensator = c }
}

// WithSequenceRetries sets how many entry numbers are tried before giving up with a conflict.
func WithSequenceRetries(n int) JournalServiceOption {
	return func(s *journalService) { s.sequenceRetries = n }
}

// WithOutboxMaxRetries sets the retry budget of new outbox records.
func WithOutboxMaxRetries(n int) JournalServiceOption {
	return func(s *journalService) { s.outboxMaxRetries = n }
}

// WithJournalClock overrides the time source.
func WithJournalClock(now func() time.Time) JournalServiceOption {
	return func(s *journalService) { s.now = now }
}

// NewJournalService creates the posting engine.
func NewJournalService(repos portsrepo.RepositoryProvider, accountSvc portssvc.AccountReaderSvc, options ...JournalServiceOption) portssvc.JournalSvcFacade {
	svc := &journalService{
		txManager:        repos.TxManager,
		journalRepo:      repos.JournalRepo,
		accountRepo:      repos.AccountRepo,
		sequenceRepo:     repos.SequenceRepo,
		outboxRepo:       repos.OutboxRepo,
		sagaRepo:         repos.SagaRepo,
		accountSvc:       accountSvc,
		sequenceRetries:  defaultSequenceRetries,
		outboxMaxRetries: defaultOutboxMaxRetries,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.JournalSvcFacade = (*journalService)(nil)

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *journalService) buildEntry(entryID string, req dto.PostJournalEntryRequest, now time.Time) domain.JournalEntry {
	actor := actorOrSystem(req.Actor)
	status := domain.EntryPosted
	if req.Draft {
		status = domain.EntryDraft
	}

	lines := req.ToDomainLines(entryID)
	for i := range lines {
		lines[i].LineID = uuid.NewString()
	}

	var source *domain.SourceDocument
	if req.SourceDocument != nil {
		source = &domain.SourceDocument{Service: req.SourceDocument.Service, DocumentID: req.SourceDocument.DocumentID}
	}

	return domain.JournalEntry{
		EntryID:        entryID,
		EntryDate:      dateOnly(req.EntryDate),
		Reference:      req.Reference,
		Description:    req.Description,
		Status:         status,
		SourceDocument: source,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          lines,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor,
			LastUpdatedAt: now,
			LastUpdatedBy: actor,
		},
	}
}

// lookupPostable resolves all accounts in one call and rejects inactive ones.
func (s *journalService) lookupPostable(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	accounts, err := s.accountSvc.GetAccountByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range accountIDs {
		if !accounts[id].IsActive {
			return nil, apperrors.NewNotFoundError("active account", id)
		}
	}
	return accounts, nil
}

// lockPostable locks the accounts inside the posting transaction and checks again that each
// is still active, since an account may be deactivated after lookupPostable ran.
func (s *journalService) lockPostable(txCtx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	locked, err := s.accountRepo.LockAccounts(txCtx, accountIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range accountIDs {
		acc, ok := locked[id]
		if !ok {
			return nil, apperrors.NewNotFoundError("account", id)
		}
		if !acc.IsActive {
			return nil, apperrors.NewNotFoundError("active account", id)
		}
	}
	return locked, nil
}

// findReplay returns the entry already posted under key, if any.
func (s *journalService) findReplay(ctx context.Context, key string) (*domain.JournalEntry, bool, error) {
	existing, err := s.journalRepo.FindEntryByIdempotencyKey(ctx, key)
	if err == nil {
		return existing, true, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, nil
	}
	return nil, false, apperrors.AsTransient(err)
}

func markJournalizedEndpoint(doc domain.SourceDocument) string {
	resource := "invoices"
	if doc.Service == domain.SourcePayables {
		resource = "bills"
	}
	return fmt.Sprintf("/api/v1/%s/%s/mark-journalized", resource, url.PathEscape(doc.DocumentID))
}

func (s *journalService) buildUpdate(entryID string, doc domain.SourceDocument, status domain.EntryStatus, now time.Time) (domain.PendingServiceUpdate, error) {
	payload, err := json.Marshal(domain.MarkJournalizedPayload{JournalEntryID: entryID, Status: status})
	if err != nil {
		return domain.PendingServiceUpdate{}, err
	}
	return domain.PendingServiceUpdate{
		ID:            uuid.NewString(),
		EntryID:       entryID,
		TargetService: doc.Service,
		Endpoint:      markJournalizedEndpoint(doc),
		Method:        http.MethodPatch,
		Payload:       payload,
		Status:        domain.UpdatePending,
		MaxRetries:    s.outboxMaxRetries,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *journalService) beginSaga(ctx context.Context, entry domain.JournalEntry, step domain.PostingStep, sc domain.SagaContext) (domain.PostingSaga, error) {
	now := s.now()
	raw, _ := json.Marshal(sc)
	saga := domain.PostingSaga{
		SagaID:    uuid.NewString(),
		EntryID:   entry.EntryID,
		Step:      step,
		Status:    domain.SagaInProgress,
		Context:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sagaRepo.SaveSaga(ctx, saga); err != nil {
		return saga, err
	}
	return saga, nil
}

// advanceSaga persists progress. The entry is already durable at this point, so a
// failure is only logged; recovery will roll the saga forward.
func (s *journalService) advanceSaga(ctx context.Context, saga *domain.PostingSaga, step domain.PostingStep, status domain.SagaStatus) {
	saga.Step = step
	saga.Status = status
	saga.UpdatedAt = s.now()
	if err := s.sagaRepo.UpdateSaga(context.WithoutCancel(ctx), *saga); err != nil {
		s.LogError(ctx, err, "Failed to record posting progress",
			slog.String("saga_id", saga.SagaID),
			slog.String("step", step.String()))
	}
}

func (s *journalService) emitEntry(ctx context.Context, topic string, entry domain.JournalEntry) {
	_ = s.notifier.Emit(ctx, topic, entry.EntryID, domain.EntryEvent{
		EntryID:     entry.EntryID,
		EntryNumber: entry.EntryNumber,
		Status:      entry.Status,
		EntryDate:   entry.EntryDate.Format(time.DateOnly),
		Reference:   entry.Reference,
	})
}

func (s *journalService) PostEntry(ctx context.Context, req dto.PostJournalEntryRequest) (*domain.JournalEntry, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	now := s.now()
	entry := s.buildEntry(uuid.NewString(), req, now)
	if err := accounting.ValidateLines(entry.Lines); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != nil {
		existing, ok, err := s.findReplay(ctx, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if ok {
			s.LogInfo(ctx, "Returning previously posted entry for idempotency key",
				slog.String("entry_id", existing.EntryID),
				slog.String("idempotency_key", *req.IdempotencyKey))
			return existing, nil
		}
	}

	if _, err := s.lookupPostable(ctx, entry.AccountIDs()); err != nil {
		return nil, err
	}

	var update *domain.PendingServiceUpdate
	if entry.SourceDocument != nil && entry.Status == domain.EntryPosted {
		u, err := s.buildUpdate(entry.EntryID, *entry.SourceDocument, entry.Status, now)
		if err != nil {
			return nil, fmt.Errorf("failed to build service update: %w", err)
		}
		update = &u
	}

	sc := domain.SagaContext{AccountIDs: entry.AccountIDs()}
	if update != nil {
		sc.UpdateID = update.ID
	}
	saga, err := s.beginSaga(ctx, entry, domain.StepAccountsChecked, sc)
	if err != nil {
		s.LogError(ctx, err, "Failed to start posting saga", slog.String("entry_id", entry.EntryID))
		return nil, apperrors.AsTransient(err)
	}

	step := domain.StepAccountsChecked
	err = runNumbered(ctx, s.txManager, s.sequenceRepo, sequence.EntryPrefix, entry.EntryDate, s.sequenceRetries,
		func(txCtx context.Context, number string) error {
			step = domain.StepAccountsChecked
			accounts, err := s.lockPostable(txCtx, entry.AccountIDs())
			if err != nil {
				return err
			}
			entry.EntryNumber = number
			if err := s.journalRepo.SaveEntry(txCtx, entry); err != nil {
				return err
			}
			step = domain.StepPersisted

			if entry.Status == domain.EntryPosted {
				changes, err := accounting.BalanceChanges(entry.Lines, accounts)
				if err != nil {
					return err
				}
				if err := s.accountRepo.ApplyBalanceChanges(txCtx, changes, entry.CreatedBy, now); err != nil {
					return err
				}
			}
			step = domain.StepBalancesUpdated

			if update != nil {
				if err := s.outboxRepo.SaveUpdate(txCtx, *update); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		if req.IdempotencyKey != nil && errors.Is(err, apperrors.ErrDuplicate) {
			if existing, ok, _ := s.findReplay(ctx, *req.IdempotencyKey); ok {
				s.advanceSaga(ctx, &saga, step, domain.SagaCompensated)
				return existing, nil
			}
		}
		saga.Step = step
		msg := err.Error()
		saga.LastError = &msg
		if s.compensator != nil {
			if cerr := s.compensator.Compensate(context.WithoutCancel(ctx), saga); cerr != nil {
				s.LogError(ctx, cerr, "Compensation failed", slog.String("saga_id", saga.SagaID))
			}
		} else {
			s.advanceSaga(ctx, &saga, step, domain.SagaCompensated)
		}
		s.LogError(ctx, err, "Failed to post journal entry",
			slog.String("entry_id", entry.EntryID),
			slog.String("step", step.String()))
		return nil, apperrors.AsTransient(err)
	}

	sc.EntryNumber = entry.EntryNumber
	saga.Context, _ = json.Marshal(sc)
	s.advanceSaga(ctx, &saga, domain.StepBalancesUpdated, domain.SagaInProgress)

	s.emitEntry(ctx, domain.TopicEntryCreated, entry)
	if entry.Status == domain.EntryPosted {
		s.emitEntry(ctx, domain.TopicEntryPosted, entry)
	}
	s.advanceSaga(ctx, &saga, domain.StepNotified, domain.SagaInProgress)

	if update != nil && s.outbox != nil {
		s.outbox.DeliverNow(ctx, update.ID)
	}
	s.advanceSaga(ctx, &saga, domain.StepComplete, domain.SagaCompleted)

	s.LogInfo(ctx, "Journal entry posted",
		slog.String("entry_id", entry.EntryID),
		slog.String("entry_number", entry.EntryNumber),
		slog.String("status", string(entry.Status)))
	return &entry, nil
}

func (s *journalService) GetEntry(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	entry, err := s.journalRepo.FindEntryByID(ctx, entryID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find journal entry", slog.String("entry_id", entryID))
		}
		return nil, err
	}
	return entry, nil
}

func toEntryFilter(params dto.ListEntriesParams) domain.EntryFilter {
	f := domain.EntryFilter{
		Status:    params.Status,
		AccountID: params.AccountID,
		Limit:     params.Limit,
		NextToken: params.NextToken,
	}
	if params.From != nil {
		from := dateOnly(*params.From)
		f.From = &from
	}
	if params.To != nil {
		to := dateOnly(*params.To)
		f.To = &to
	}
	return f
}

func (s *journalService) ListEntries(ctx context.Context, params dto.ListEntriesParams) (*dto.ListEntriesResponse, error) {
	if err := validateStruct(params); err != nil {
		return nil, err
	}
	if params.Limit == 0 {
		params.Limit = 50
	}
	entries, next, err := s.journalRepo.ListEntries(ctx, toEntryFilter(params))
	if err != nil {
		s.LogError(ctx, err, "Failed to list journal entries")
		return nil, err
	}
	return &dto.ListEntriesResponse{Entries: entries, NextToken: next}, nil
}

func (s *journalService) CountEntries(ctx context.Context, params dto.ListEntriesParams) (int, error) {
	if err := validateStruct(params); err != nil {
		return 0, err
	}
	return s.journalRepo.CountEntries(ctx, toEntryFilter(params))
}

func (s *journalService) loadDraft(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	entry, err := s.journalRepo.FindEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != domain.EntryDraft {
		return nil, apperrors.NewConflictError("journal entry %s is %s, not DRAFT", entryID, entry.Status)
	}
	return entry, nil
}

func (s *journalService) UpdateDraft(ctx context.Context, entryID string, req dto.PostJournalEntryRequest) (*domain.JournalEntry, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	existing, err := s.loadDraft(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req.Draft = true
	updated := s.buildEntry(entryID, req, now)
	if err := accounting.ValidateLines(updated.Lines); err != nil {
		return nil, err
	}
	if _, err := s.lookupPostable(ctx, updated.AccountIDs()); err != nil {
		return nil, err
	}
	updated.EntryNumber = existing.EntryNumber
	updated.AuditFields.CreatedAt = existing.CreatedAt
	updated.AuditFields.CreatedBy = existing.CreatedBy

	if err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.journalRepo.ReplaceDraft(txCtx, updated)
	}); err != nil {
		s.LogError(ctx, err, "Failed to update draft", slog.String("entry_id", entryID))
		return nil, apperrors.AsTransient(err)
	}

	s.emitEntry(ctx, domain.TopicEntryUpdated, updated)
	return &updated, nil
}

func (s *journalService) DeleteDraft(ctx context.Context, entryID string, actor string) error {
	entry, err := s.loadDraft(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.journalRepo.DeleteEntry(ctx, entryID); err != nil {
		s.LogError(ctx, err, "Failed to delete draft", slog.String("entry_id", entryID))
		return apperrors.AsTransient(err)
	}
	s.LogInfo(ctx, "Draft deleted", slog.String("entry_id", entryID), slog.String("actor", actorOrSystem(actor)))
	s.emitEntry(ctx, domain.TopicEntryDeleted, *entry)
	return nil
}

// PostDraft applies a draft in a single transaction. No saga is kept because there is
// no intermediate state outside that transaction.
func (s *journalService) PostDraft(ctx context.Context, entryID string, actor string) (*domain.JournalEntry, error) {
	draft, err := s.loadDraft(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := accounting.ValidateLines(draft.Lines); err != nil {
		return nil, err
	}
	if _, err := s.lookupPostable(ctx, draft.AccountIDs()); err != nil {
		return nil, err
	}

	now := s.now()
	actor = actorOrSystem(actor)
	var update *domain.PendingServiceUpdate
	if draft.SourceDocument != nil {
		u, err := s.buildUpdate(draft.EntryID, *draft.SourceDocument, domain.EntryPosted, now)
		if err != nil {
			return nil, err
		}
		update = &u
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.journalRepo.FindEntryByID(txCtx, entryID)
		if err != nil {
			return err
		}
		if current.Status != domain.EntryDraft {
			return apperrors.NewConflictError("journal entry %s is %s, not DRAFT", entryID, current.Status)
		}
		accounts, err := s.lockPostable(txCtx, draft.AccountIDs())
		if err != nil {
			return err
		}
		if err := s.journalRepo.UpdateEntryStatus(txCtx, entryID, domain.EntryPosted, nil, nil, actor, now); err != nil {
			return err
		}
		changes, err := accounting.BalanceChanges(draft.Lines, accounts)
		if err != nil {
			return err
		}
		if err := s.accountRepo.ApplyBalanceChanges(txCtx, changes, actor, now); err != nil {
			return err
		}
		if update != nil {
			return s.outboxRepo.SaveUpdate(txCtx, *update)
		}
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to post draft", slog.String("entry_id", entryID))
		return nil, apperrors.AsTransient(err)
	}

	draft.Status = domain.EntryPosted
	draft.LastUpdatedAt = now
	draft.LastUpdatedBy = actor
	s.emitEntry(ctx, domain.TopicEntryPosted, *draft)
	_ = s.notifier.Emit(ctx, domain.TopicStatusChanged, draft.EntryID, domain.StatusChangedEvent{
		EntryID:        draft.EntryID,
		PreviousStatus: domain.EntryDraft,
		Status:         domain.EntryPosted,
	})
	if update != nil && s.outbox != nil {
		s.outbox.DeliverNow(ctx, update.ID)
	}
	return draft, nil
}

// ReverseEntry posts a mirrored entry and marks the original and the mirror REVERSED,
// so that neither contributes to statements while account balances net to zero.
func (s *journalService) ReverseEntry(ctx context.Context, entryID string, req dto.ReverseEntryRequest) (*domain.JournalEntry, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	original, err := s.journalRepo.FindEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.EntryPosted {
		return nil, apperrors.NewConflictError("only POSTED entries can be reversed, %s is %s", entryID, original.Status)
	}
	if _, err := s.accountSvc.GetAccountByIDs(ctx, original.AccountIDs()); err != nil {
		return nil, err
	}

	now := s.now()
	actor := actorOrSystem(req.Actor)
	date := dateOnly(now)
	if req.EntryDate != nil {
		date = dateOnly(*req.EntryDate)
	}
	description := req.Reason
	if description == "" {
		description = "Reversal of " + original.EntryNumber
	}

	mirrorID := uuid.NewString()
	mirror := domain.JournalEntry{
		EntryID:      mirrorID,
		EntryDate:    date,
		Reference:    "REV-" + original.EntryNumber,
		Description:  description,
		Status:       domain.EntryReversed,
		ReversalOfID: &original.EntryID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor,
			LastUpdatedAt: now,
			LastUpdatedBy: actor,
		},
	}
	for i, l := range original.Lines {
		mirror.Lines = append(mirror.Lines, domain.JournalLine{
			LineID:      uuid.NewString(),
			EntryID:     mirrorID,
			LineNumber:  i + 1,
			AccountID:   l.AccountID,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
		})
	}

	var update *domain.PendingServiceUpdate
	if original.SourceDocument != nil {
		u, err := s.buildUpdate(original.EntryID, *original.SourceDocument, domain.EntryReversed, now)
		if err != nil {
			return nil, err
		}
		update = &u
	}

	err = runNumbered(ctx, s.txManager, s.sequenceRepo, sequence.EntryPrefix, date, s.sequenceRetries,
		func(txCtx context.Context, number string) error {
			current, err := s.journalRepo.FindEntryByID(txCtx, entryID)
			if err != nil {
				return err
			}
			if current.Status != domain.EntryPosted {
				return apperrors.NewConflictError("journal entry %s is already %s", entryID, current.Status)
			}
			accounts, err := s.accountRepo.LockAccounts(txCtx, original.AccountIDs())
			if err != nil {
				return err
			}
			mirror.EntryNumber = number
			if err := s.journalRepo.SaveEntry(txCtx, mirror); err != nil {
				return err
			}
			changes, err := accounting.BalanceChanges(mirror.Lines, accounts)
			if err != nil {
				return err
			}
			if err := s.accountRepo.ApplyBalanceChanges(txCtx, changes, actor, now); err != nil {
				return err
			}
			if err := s.journalRepo.UpdateEntryStatus(txCtx, entryID, domain.EntryReversed, nil, &mirrorID, actor, now); err != nil {
				return err
			}
			if update != nil {
				return s.outboxRepo.SaveUpdate(txCtx, *update)
			}
			return nil
		})
	if err != nil {
		s.LogError(ctx, err, "Failed to reverse journal entry", slog.String("entry_id", entryID))
		return nil, apperrors.AsTransient(err)
	}

	s.emitEntry(ctx, domain.TopicEntryCreated, mirror)
	_ = s.notifier.Emit(ctx, domain.TopicStatusChanged, entryID, domain.StatusChangedEvent{
		EntryID:        entryID,
		PreviousStatus: domain.EntryPosted,
		Status:         domain.EntryReversed,
		RelatedEntryID: mirrorID,
	})
	if update != nil && s.outbox != nil {
		s.outbox.DeliverNow(ctx, update.ID)
	}

	s.LogInfo(ctx, "Journal entry reversed",
		slog.String("entry_id", entryID),
		slog.String("reversal_entry_id", mirrorID))
	return &mirror, nil
}
