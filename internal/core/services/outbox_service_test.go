package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/core/services"
	"github.com/SscSPs/general_ledger/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	base, max := 2*time.Second, time.Minute
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},
		{60, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, services.RetryDelay(base, max, tt.failures), "failures=%d", tt.failures)
	}
}

type outboxFixture struct {
	repo   portsrepo.OutboxRepository
	caller *stubCaller
	svc    portssvc.OutboxSvcFacade
	now    time.Time
}

func newOutboxFixture() *outboxFixture {
	repos := memory.NewRepositoryProvider(memory.NewStore())
	f := &outboxFixture{
		repo:   repos.OutboxRepo,
		caller: &stubCaller{},
		now:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = services.NewOutboxService(f.repo, f.caller,
		services.WithBackoff(time.Second, time.Minute),
		services.WithPolling(time.Hour, 10, time.Minute),
		services.WithOutboxClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *outboxFixture) seed(t *testing.T, id string, maxRetries int) {
	t.Helper()
	require.NoError(t, f.repo.SaveUpdate(context.Background(), domain.PendingServiceUpdate{
		ID:            id,
		EntryID:       "entry-" + id,
		TargetService: domain.SourceReceivables,
		Endpoint:      "/api/v1/invoices/" + id + "/mark-journalized",
		Method:        "PATCH",
		Payload:       []byte(`{"journalEntryId":"entry-` + id + `","status":"POSTED"}`),
		Status:        domain.UpdatePending,
		MaxRetries:    maxRetries,
		NextAttemptAt: f.now,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}))
}

func (f *outboxFixture) get(t *testing.T, id string) *domain.PendingServiceUpdate {
	t.Helper()
	u, err := f.repo.FindUpdateByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestOutbox_RetriesWithBackoffThenFails(t *testing.T) {
	ctx := context.Background()
	f := newOutboxFixture()
	f.seed(t, "u1", 2)
	f.caller.failures = 5

	n, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u := f.get(t, "u1")
	assert.Equal(t, domain.UpdatePending, u.Status)
	assert.Equal(t, 1, u.RetryCount)
	assert.Equal(t, f.now.Add(time.Second), u.NextAttemptAt)
	assert.Nil(t, u.LockedUntil)

	// Not due yet.
	n, err = f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(2 * time.Second)
	n, err = f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u = f.get(t, "u1")
	assert.Equal(t, domain.UpdateFailed, u.Status)
	assert.Equal(t, 2, u.RetryCount)
	require.NotNil(t, u.LastError)
	assert.Contains(t, *u.LastError, "service unavailable")

	f.now = f.now.Add(time.Hour)
	n, err = f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed records are not retried automatically")
	assert.Equal(t, 2, f.caller.callCount())
}

func TestOutbox_DeliversWithRecordIDAsIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newOutboxFixture()
	f.seed(t, "u1", 3)
	f.seed(t, "u2", 3)

	n, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys := []string{f.caller.calls[0].IdempotencyKey, f.caller.calls[1].IdempotencyKey}
	assert.ElementsMatch(t, []string{"u1", "u2"}, keys)
	assert.Equal(t, "PATCH", f.caller.calls[0].Method)

	completed, err := f.svc.ListUpdates(ctx, domain.UpdateFilter{Status: domain.UpdateCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)
}

func TestOutbox_DeliverNowSkipsLeasedRecord(t *testing.T) {
	ctx := context.Background()
	f := newOutboxFixture()
	f.seed(t, "u1", 3)

	_, err := f.repo.ClaimByID(ctx, "u1", f.now, time.Minute)
	require.NoError(t, err)

	f.svc.DeliverNow(ctx, "u1")
	assert.Zero(t, f.caller.callCount())

	// The lease expires and the record becomes claimable again.
	f.now = f.now.Add(2 * time.Minute)
	f.svc.DeliverNow(ctx, "u1")
	assert.Equal(t, 1, f.caller.callCount())
	assert.Equal(t, domain.UpdateCompleted, f.get(t, "u1").Status)
}

func TestOutbox_Requeue(t *testing.T) {
	ctx := context.Background()
	f := newOutboxFixture()
	f.seed(t, "u1", 1)
	f.caller.failures = 1

	f.svc.DeliverNow(ctx, "u1")
	require.Equal(t, domain.UpdateFailed, f.get(t, "u1").Status)

	require.NoError(t, f.svc.Requeue(ctx, "u1"))
	u := f.get(t, "u1")
	assert.Equal(t, domain.UpdatePending, u.Status)
	assert.Zero(t, u.RetryCount)
	assert.Nil(t, u.LastError)

	n, err := f.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.UpdateCompleted, f.get(t, "u1").Status)

	assert.ErrorIs(t, f.svc.Requeue(ctx, "u1"), apperrors.ErrConflict)
	assert.ErrorIs(t, f.svc.Requeue(ctx, "missing"), apperrors.ErrNotFound)
}

func TestOutbox_RunStopsWithContext(t *testing.T) {
	f := newOutboxFixture()
	f.seed(t, "u1", 3)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.caller.callCount() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
