package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
)

// outboxService implements the OutboxSvcFacade interface
type outboxService struct {
	BaseService
	outboxRepo portsrepo.OutboxRepository
	caller     portssvc.ServiceCaller

	baseDelay    time.Duration
	maxDelay     time.Duration
	pollInterval time.Duration
	batchSize    int
	lease        time.Duration
	now          func() time.Time
}

// OutboxServiceOption is a functional option for configuring the outbox service
type OutboxServiceOption func(*outboxService)

// WithBackoff sets the first retry delay and the cap of the exponential backoff.
func WithBackoff(base, max time.Duration) OutboxServiceOption {
	return func(s *outboxService) {
		s.baseDelay = base
		s.maxDelay = max
	}
}

// WithPolling sets how often Run polls, how many records one pass claims and how long a claim lasts.
func WithPolling(interval time.Duration, batchSize int, lease time.Duration) OutboxServiceOption {
	return func(s *outboxService) {
		s.pollInterval = interval
		s.batchSize = batchSize
		s.lease = lease
	}
}

// WithOutboxClock overrides the time source.
func WithOutboxClock(now func() time.Time) OutboxServiceOption {
	return func(s *outboxService) { s.now = now }
}

// NewOutboxService creates the retry queue for updates to external invoice services.
func NewOutboxService(repo portsrepo.OutboxRepository, caller portssvc.ServiceCaller, options ...OutboxServiceOption) portssvc.OutboxSvcFacade {
	svc := &outboxService{
		outboxRepo:   repo,
		caller:       caller,
		baseDelay:    2 * time.Second,
		maxDelay:     10 * time.Minute,
		pollInterval: 5 * time.Second,
		batchSize:    50,
		lease:        time.Minute,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.OutboxSvcFacade = (*outboxService)(nil)

// RetryDelay returns the wait before the next attempt after `failures` failed ones:
// base doubled per failure, capped at max.
func RetryDelay(base, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		return base
	}
	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// attempt performs one delivery of a claimed record and stores the outcome.
func (s *outboxService) attempt(ctx context.Context, u domain.PendingServiceUpdate) {
	err := s.caller.Call(ctx, portssvc.ServiceRequest{
		Service:        string(u.TargetService),
		Method:         u.Method,
		Endpoint:       u.Endpoint,
		Payload:        u.Payload,
		IdempotencyKey: u.ID,
	})

	now := s.now()
	u.LockedUntil = nil
	u.UpdatedAt = now
	if err == nil {
		u.Status = domain.UpdateCompleted
		u.LastError = nil
	} else {
		u.RetryCount++
		msg := err.Error()
		u.LastError = &msg
		if u.RetryCount >= u.MaxRetries {
			u.Status = domain.UpdateFailed
		} else {
			u.Status = domain.UpdatePending
			u.NextAttemptAt = now.Add(RetryDelay(s.baseDelay, s.maxDelay, u.RetryCount))
		}
	}

	if serr := s.outboxRepo.SaveAttempt(context.WithoutCancel(ctx), u); serr != nil {
		s.LogError(ctx, serr, "Failed to record delivery attempt", slog.String("update_id", u.ID))
		return
	}

	switch u.Status {
	case domain.UpdateCompleted:
		s.LogInfo(ctx, "Service update delivered",
			slog.String("update_id", u.ID),
			slog.String("service", string(u.TargetService)))
	case domain.UpdateFailed:
		s.LogError(ctx, err, "Service update exhausted its retries",
			slog.String("update_id", u.ID),
			slog.Int("retry_count", u.RetryCount))
	default:
		s.LogWarn(ctx, "Service update failed, will retry",
			slog.String("update_id", u.ID),
			slog.Int("retry_count", u.RetryCount),
			slog.Time("next_attempt_at", u.NextAttemptAt),
			slog.String("error", err.Error()))
	}
}

func (s *outboxService) DeliverNow(ctx context.Context, updateID string) {
	u, err := s.outboxRepo.ClaimByID(ctx, updateID, s.now(), s.lease)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.LogDebug(ctx, "Service update already claimed", slog.String("update_id", updateID))
			return
		}
		s.LogError(ctx, err, "Failed to claim service update", slog.String("update_id", updateID))
		return
	}
	s.attempt(ctx, *u)
}

func (s *outboxService) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.outboxRepo.ClaimDue(ctx, s.now(), s.lease, s.batchSize)
	if err != nil {
		s.LogError(ctx, err, "Failed to claim due service updates")
		return 0, err
	}
	for _, u := range due {
		s.attempt(ctx, u)
	}
	if len(due) > 0 {
		s.LogDebug(ctx, "Outbox pass finished", slog.Int("attempted", len(due)))
	}
	return len(due), nil
}

func (s *outboxService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := s.DispatchDue(ctx); err != nil && ctx.Err() == nil {
			s.LogError(ctx, err, "Outbox pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *outboxService) ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.PendingServiceUpdate, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	updates, err := s.outboxRepo.ListUpdates(ctx, filter)
	if err != nil {
		return nil, err
	}
	if updates == nil {
		return []domain.PendingServiceUpdate{}, nil
	}
	return updates, nil
}

func (s *outboxService) Requeue(ctx context.Context, updateID string) error {
	u, err := s.outboxRepo.FindUpdateByID(ctx, updateID)
	if err != nil {
		return err
	}
	if u.Status != domain.UpdateFailed {
		return apperrors.NewConflictError("service update %s is %s, only FAILED updates can be requeued", updateID, u.Status)
	}

	now := s.now()
	u.Status = domain.UpdatePending
	u.RetryCount = 0
	u.LastError = nil
	u.LockedUntil = nil
	u.NextAttemptAt = now
	u.UpdatedAt = now
	if err := s.outboxRepo.SaveAttempt(ctx, *u); err != nil {
		s.LogError(ctx, err, "Failed to requeue service update", slog.String("update_id", updateID))
		return err
	}
	s.LogInfo(ctx, "Service update requeued", slog.String("update_id", updateID))
	return nil
}
