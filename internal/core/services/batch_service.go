package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/SscSPs/general_ledger/internal/utils/sequence"
	"github.com/google/uuid"
)

// batchService implements the BatchSvcFacade interface
type batchService struct {
	BaseService
	txManager    portsrepo.TransactionManager
	batchRepo    portsrepo.BatchRepositoryFacade
	sequenceRepo portsrepo.SequenceRepository
	poster       portssvc.JournalPosterSvc
	notifier     *Notifier

	sequenceRetries int
	staleAfter      time.Duration
	now             func() time.Time
}

// BatchServiceOption is a functional option for configuring the batch service
type BatchServiceOption func(*batchService)

// WithBatchNotifier sets the event notifier.
func WithBatchNotifier(n *Notifier) BatchServiceOption {
	return func(s *batchService) { s.notifier = n }
}

// WithStaleAfter sets how long a PROCESSING batch must be idle before RetryBatch may take it over.
func WithStaleAfter(d time.Duration) BatchServiceOption {
	return func(s *batchService) { s.staleAfter = d }
}

// WithBatchSequenceRetries sets how many batch numbers are tried before giving up.
func WithBatchSequenceRetries(n int) BatchServiceOption {
	return func(s *batchService) { s.sequenceRetries = n }
}

// WithBatchClock overrides the time source.
func WithBatchClock(now func() time.Time) BatchServiceOption {
	return func(s *batchService) { s.now = now }
}

// NewBatchService creates the batch coordinator on top of the posting engine.
func NewBatchService(repos portsrepo.RepositoryProvider, poster portssvc.JournalPosterSvc, options ...BatchServiceOption) portssvc.BatchSvcFacade {
	svc := &batchService{
		txManager:       repos.TxManager,
		batchRepo:       repos.BatchRepo,
		sequenceRepo:    repos.SequenceRepo,
		poster:          poster,
		sequenceRetries: defaultSequenceRetries,
		staleAfter:      30 * time.Minute,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.BatchSvcFacade = (*batchService)(nil)

func checkCommands(commands []json.RawMessage) error {
	for i, c := range commands {
		if !json.Valid(c) {
			return apperrors.NewValidationError("command %d is not valid JSON", i+1)
		}
	}
	return nil
}

func newItems(batchID string, firstSequence int, commands []json.RawMessage) []domain.BatchItem {
	items := make([]domain.BatchItem, len(commands))
	for i, c := range commands {
		items[i] = domain.BatchItem{
			ItemID:   uuid.NewString(),
			BatchID:  batchID,
			Sequence: firstSequence + i,
			Command:  append(json.RawMessage(nil), c...),
			Status:   domain.ItemPending,
		}
	}
	return items
}

func (s *batchService) CreateBatch(ctx context.Context, req dto.CreateBatchRequest) (*domain.Batch, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkCommands(req.Commands); err != nil {
		return nil, err
	}

	now := s.now()
	actor := actorOrSystem(req.Actor)
	batch := domain.Batch{
		BatchID:     uuid.NewString(),
		Description: req.Description,
		Status:      domain.BatchPending,
		ItemCount:   len(req.Commands),
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor,
			LastUpdatedAt: now,
			LastUpdatedBy: actor,
		},
	}
	if len(req.Commands) == 0 {
		batch.Status = domain.BatchDraft
	}
	items := newItems(batch.BatchID, 1, req.Commands)

	err := runNumbered(ctx, s.txManager, s.sequenceRepo, sequence.BatchPrefix, now, s.sequenceRetries,
		func(txCtx context.Context, number string) error {
			batch.BatchNumber = number
			return s.batchRepo.SaveBatch(txCtx, batch, items)
		})
	if err != nil {
		s.LogError(ctx, err, "Failed to create batch")
		return nil, apperrors.AsTransient(err)
	}

	s.LogInfo(ctx, "Batch created",
		slog.String("batch_id", batch.BatchID),
		slog.String("batch_number", batch.BatchNumber),
		slog.Int("items", batch.ItemCount))
	batch.Items = items
	return &batch, nil
}

func (s *batchService) AddItems(ctx context.Context, batchID string, commands []json.RawMessage) (*domain.Batch, error) {
	if len(commands) == 0 {
		return nil, apperrors.NewValidationError("no commands to add")
	}
	if err := checkCommands(commands); err != nil {
		return nil, err
	}

	var batch *domain.Batch
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		now := s.now()
		moved, err := s.batchRepo.TransitionStatus(txCtx, batchID,
			[]domain.BatchStatus{domain.BatchDraft, domain.BatchPending}, domain.BatchPending, now)
		if err != nil {
			return err
		}
		current, err := s.batchRepo.FindBatchByID(txCtx, batchID)
		if err != nil {
			return err
		}
		if !moved {
			return apperrors.NewConflictError("batch %s is %s, items can only be added while DRAFT or PENDING", batchID, current.Status)
		}
		if err := s.batchRepo.AddItems(txCtx, batchID, newItems(batchID, current.ItemCount+1, commands)); err != nil {
			return err
		}
		current.ItemCount += len(commands)
		current.LastUpdatedAt = now
		if err := s.batchRepo.UpdateBatch(txCtx, *current); err != nil {
			return err
		}
		batch = current
		return nil
	})
	if err != nil {
		return nil, apperrors.AsTransient(err)
	}
	return batch, nil
}

// ExecuteBatch runs a DRAFT or PENDING batch. A caller that loses the race for the batch,
// in this process or another, gets ErrConflict.
func (s *batchService) ExecuteBatch(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	return s.execute(ctx, batchID, []domain.BatchStatus{domain.BatchDraft, domain.BatchPending})
}

// execute claims the batch by moving it from one of `from` to PROCESSING and runs its
// outstanding items sequentially.
func (s *batchService) execute(ctx context.Context, batchID string, from []domain.BatchStatus) (*domain.BatchSummary, error) {
	batch, err := s.batchRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.ItemCount == 0 {
		return nil, apperrors.NewValidationError("batch %s has no items", batchID)
	}

	now := s.now()
	moved, err := s.batchRepo.TransitionStatus(ctx, batchID, from, domain.BatchProcessing, now)
	if err != nil {
		return nil, apperrors.AsTransient(err)
	}
	if !moved {
		return nil, apperrors.NewConflictError("batch %s is %s and cannot be executed", batchID, batch.Status)
	}

	items, err := s.batchRepo.FindBatchItems(ctx, batchID)
	if err != nil {
		return nil, s.failBatch(ctx, batch, nil, err)
	}

	batch.Status = domain.BatchProcessing
	batch.StartedAt = &now
	batch.CompletedAt = nil
	batch.LastUpdatedAt = now
	batch.ProcessedCount = 0
	batch.FailedCount = 0
	for _, item := range items {
		if item.Status == domain.ItemCompleted {
			batch.ProcessedCount++
		}
	}

	logger := s.GetLogger(ctx).With(slog.String("batch_id", batchID))
	var itemErrors []domain.BatchItemError

	for _, item := range items {
		if item.Status == domain.ItemCompleted {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, s.failBatch(ctx, batch, itemErrors, err)
		}

		item.Status = domain.ItemProcessing
		if err := s.batchRepo.UpdateItem(ctx, item); err != nil {
			return nil, s.failBatch(ctx, batch, itemErrors, err)
		}

		entry, postErr := s.postItem(ctx, item)
		if postErr != nil && ctx.Err() != nil {
			// The item stays PROCESSING; a retry resolves it through its idempotency key.
			return nil, s.failBatch(ctx, batch, itemErrors, ctx.Err())
		}

		at := s.now()
		item.ProcessedAt = &at
		if postErr == nil {
			item.Status = domain.ItemCompleted
			item.EntryID = &entry.EntryID
			item.ErrorMessage = nil
			batch.ProcessedCount++
		} else {
			msg := postErr.Error()
			item.Status = domain.ItemFailed
			item.ErrorMessage = &msg
			batch.FailedCount++
			itemErrors = append(itemErrors, domain.BatchItemError{ItemID: item.ItemID, Sequence: item.Sequence, Message: msg})
			logger.Warn("Batch item failed", slog.Int("sequence", item.Sequence), slog.String("error", msg))
		}
		batch.LastUpdatedAt = at

		if err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.batchRepo.UpdateItem(txCtx, item); err != nil {
				return err
			}
			return s.batchRepo.UpdateBatch(txCtx, *batch)
		}); err != nil {
			return nil, s.failBatch(ctx, batch, itemErrors, err)
		}
	}

	completedAt := s.now()
	batch.CompletedAt = &completedAt
	batch.LastUpdatedAt = completedAt
	batch.Status = domain.BatchFailed
	if batch.ProcessedCount > 0 {
		batch.Status = domain.BatchCompleted
	}
	if err := s.batchRepo.UpdateBatch(ctx, *batch); err != nil {
		return nil, s.failBatch(ctx, batch, itemErrors, err)
	}

	summary := s.summarize(batch, itemErrors)
	_ = s.notifier.Emit(ctx, domain.TopicBatchComplete, batchID, summary)
	logger.Info("Batch processed",
		slog.String("status", string(batch.Status)),
		slog.Int("processed", batch.ProcessedCount),
		slog.Int("failed", batch.FailedCount))
	return summary, nil
}

// postItem decodes an item command and posts it. The item id is the default idempotency
// key so an item interrupted after its entry committed is matched to that entry.
func (s *batchService) postItem(ctx context.Context, item domain.BatchItem) (*domain.JournalEntry, error) {
	var req dto.PostJournalEntryRequest
	if err := json.Unmarshal(item.Command, &req); err != nil {
		return nil, apperrors.NewValidationError("item %d: cannot decode command: %v", item.Sequence, err)
	}
	if req.IdempotencyKey == nil {
		key := item.ItemID
		req.IdempotencyKey = &key
	}
	return s.poster.PostEntry(ctx, req)
}

func (s *batchService) summarize(batch *domain.Batch, itemErrors []domain.BatchItemError) *domain.BatchSummary {
	if itemErrors == nil {
		itemErrors = []domain.BatchItemError{}
	}
	return &domain.BatchSummary{
		BatchID:        batch.BatchID,
		BatchNumber:    batch.BatchNumber,
		Success:        batch.Status == domain.BatchCompleted,
		Status:         batch.Status,
		ItemCount:      batch.ItemCount,
		ProcessedCount: batch.ProcessedCount,
		FailedCount:    batch.FailedCount,
		Errors:         itemErrors,
	}
}

// failBatch marks the batch FAILED after an error outside the per-item outcome and returns cause.
func (s *batchService) failBatch(ctx context.Context, batch *domain.Batch, itemErrors []domain.BatchItemError, cause error) error {
	ctx = context.WithoutCancel(ctx)
	at := s.now()
	batch.Status = domain.BatchFailed
	batch.CompletedAt = &at
	batch.LastUpdatedAt = at
	if err := s.batchRepo.UpdateBatch(ctx, *batch); err != nil {
		s.LogError(ctx, err, "Failed to mark batch failed", slog.String("batch_id", batch.BatchID))
	}
	_ = s.notifier.Emit(ctx, domain.TopicBatchComplete, batch.BatchID, s.summarize(batch, itemErrors))
	s.LogError(ctx, cause, "Batch execution aborted", slog.String("batch_id", batch.BatchID))
	return fmt.Errorf("batch %s aborted: %w", batch.BatchID, apperrors.AsTransient(cause))
}

func (s *batchService) RetryBatch(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	batch, err := s.batchRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	switch batch.Status {
	case domain.BatchCompleted, domain.BatchFailed:
	case domain.BatchProcessing:
		if s.now().Sub(batch.LastUpdatedAt) < s.staleAfter {
			return nil, apperrors.NewConflictError("batch %s is still processing", batchID)
		}
		s.LogWarn(ctx, "Taking over stale batch", slog.String("batch_id", batchID), slog.Time("last_updated_at", batch.LastUpdatedAt))
	default:
		return nil, apperrors.NewConflictError("batch %s is %s, execute it instead of retrying", batchID, batch.Status)
	}

	items, err := s.batchRepo.FindBatchItems(ctx, batchID)
	if err != nil {
		return nil, err
	}
	outstanding := 0
	for _, item := range items {
		if item.Status != domain.ItemCompleted {
			outstanding++
		}
	}
	if outstanding == 0 {
		return nil, apperrors.NewConflictError("batch %s has no failed or unfinished items", batchID)
	}

	moved, err := s.batchRepo.TransitionStatus(ctx, batchID, []domain.BatchStatus{batch.Status}, domain.BatchPending, s.now())
	if err != nil {
		return nil, apperrors.AsTransient(err)
	}
	if !moved {
		return nil, apperrors.NewConflictError("batch %s changed status during retry", batchID)
	}
	if _, err := s.batchRepo.ResetFailedItems(ctx, batchID); err != nil {
		return nil, apperrors.AsTransient(err)
	}

	s.LogInfo(ctx, "Retrying batch", slog.String("batch_id", batchID), slog.Int("outstanding", outstanding))
	return s.execute(ctx, batchID, []domain.BatchStatus{domain.BatchPending})
}

func (s *batchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := s.batchRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	items, err := s.batchRepo.FindBatchItems(ctx, batchID)
	if err != nil {
		return nil, err
	}
	batch.Items = items
	return batch, nil
}

func (s *batchService) ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	batches, err := s.batchRepo.ListBatches(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list batches")
		return nil, err
	}
	if batches == nil {
		return []domain.Batch{}, nil
	}
	return batches, nil
}
