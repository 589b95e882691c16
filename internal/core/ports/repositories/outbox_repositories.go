package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// OutboxRepository stores pending service updates.
type OutboxRepository interface {
	// SaveUpdate inserts a new record. Call inside the transaction that creates the entry.
	SaveUpdate(ctx context.Context, update domain.PendingServiceUpdate) error

	// FindUpdateByID retrieves one record.
	FindUpdateByID(ctx context.Context, id string) (*domain.PendingServiceUpdate, error)

	// ClaimDue leases up to limit records that are PENDING and due, or PROCESSING with an expired lease.
	// Claimed records are PROCESSING with LockedUntil = now+lease.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.PendingServiceUpdate, error)

	// ClaimByID leases one record under the same rules as ClaimDue, ignoring NextAttemptAt.
	// It returns apperrors.ErrConflict when the record is leased or finished.
	ClaimByID(ctx context.Context, id string, now time.Time, lease time.Duration) (*domain.PendingServiceUpdate, error)

	// SaveAttempt persists the outcome of a delivery attempt.
	SaveAttempt(ctx context.Context, update domain.PendingServiceUpdate) error

	// DeleteByEntryID removes all records for an entry.
	DeleteByEntryID(ctx context.Context, entryID string) error

	// ListUpdates retrieves records oldest first.
	ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.PendingServiceUpdate, error)
}
