package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/core/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/SscSPs/general_ledger/internal/utils/sequence"
	"github.com/stretchr/testify/suite"
)

// deactivatingReader deactivates the accounts right after the posting engine has looked them up.
type deactivatingReader struct {
	portssvc.AccountSvcFacade
}

func (r deactivatingReader) GetAccountByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	accounts, err := r.AccountSvcFacade.GetAccountByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range accountIDs {
		if err := r.DeactivateAccount(ctx, id, "ops"); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// staleKeyLookup misses the first idempotency lookups, like a reader that ran before a
// concurrent insert of the same key committed.
type staleKeyLookup struct {
	portsrepo.JournalRepositoryFacade
	misses int
}

func (r *staleKeyLookup) FindEntryByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error) {
	if r.misses > 0 {
		r.misses--
		return nil, apperrors.NewNotFoundError("journal entry", key)
	}
	return r.JournalRepositoryFacade.FindEntryByIdempotencyKey(ctx, key)
}

// postingDuringDelete starts a posting right after a delete has checked the account for postings.
type postingDuringDelete struct {
	portsrepo.AccountRepositoryFacade
	once sync.Once
	post func()
}

func (r *postingDuringDelete) HasPostings(ctx context.Context, accountID string) (bool, error) {
	has, err := r.AccountRepositoryFacade.HasPostings(ctx, accountID)
	r.once.Do(func() { go r.post() })
	return has, err
}

type JournalServiceTestSuite struct {
	suite.Suite
	l       *ledger
	ctx     context.Context
	cash    *domain.Account
	revenue *domain.Account
	payable *domain.Account
	expense *domain.Account
	date    time.Time
}

func (suite *JournalServiceTestSuite) SetupTest() {
	suite.l = newLedger()
	suite.ctx = context.Background()
	t := suite.T()
	suite.cash = suite.l.account(t, "1000", domain.Asset, domain.SubtypeCash)
	suite.revenue = suite.l.account(t, "4000", domain.Revenue, domain.SubtypeOperatingRevenue)
	suite.payable = suite.l.account(t, "2000", domain.Liability, domain.SubtypeAccountsPayable)
	suite.expense = suite.l.account(t, "5000", domain.Expense, domain.SubtypeOperatingExpense)
	suite.date = day(2024, time.March, 15)
}

func (suite *JournalServiceTestSuite) saleRequest(amount string) dto.PostJournalEntryRequest {
	return dto.PostJournalEntryRequest{
		EntryDate: suite.date,
		Reference: "INV-1",
		Lines:     []dto.JournalLineRequest{debit(suite.cash.AccountID, amount), credit(suite.revenue.AccountID, amount)},
	}
}

func (suite *JournalServiceTestSuite) TestPostEntry_UpdatesBalancesAndNumbers() {
	first, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("100"))
	suite.Require().NoError(err)
	second, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("25.50"))
	suite.Require().NoError(err)

	suite.Equal("JE-20240315-0001", first.EntryNumber)
	suite.Equal("JE-20240315-0002", second.EntryNumber)
	suite.Equal(domain.EntryPosted, first.Status)
	suite.True(dec("125.50").Equal(suite.l.balance(suite.T(), suite.cash.AccountID)))
	suite.True(dec("125.50").Equal(suite.l.balance(suite.T(), suite.revenue.AccountID)))

	stored, err := suite.l.svc.Journal.GetEntry(suite.ctx, first.EntryID)
	suite.Require().NoError(err)
	suite.Require().Len(stored.Lines, 2)
	suite.Equal(suite.cash.AccountID, stored.Lines[0].AccountID)
	suite.True(dec("100").Equal(stored.Lines[0].Debit))
	suite.True(dec("100").Equal(stored.Lines[1].Credit))
	debits, credits := stored.Totals()
	suite.True(debits.Equal(credits))

	suite.Contains(suite.l.publisher.topics(), "test."+domain.TopicEntryCreated)
	suite.Contains(suite.l.publisher.topics(), "test."+domain.TopicEntryPosted)
}

func (suite *JournalServiceTestSuite) TestPostEntry_Unbalanced() {
	req := suite.saleRequest("100")
	req.Lines[1].Credit = dec("99")

	_, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)

	suite.ErrorIs(err, apperrors.ErrValidation)
	count, err := suite.l.svc.Journal.CountEntries(suite.ctx, dto.ListEntriesParams{})
	suite.Require().NoError(err)
	suite.Zero(count)
	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())
}

func (suite *JournalServiceTestSuite) TestPostEntry_WithinTolerance() {
	req := suite.saleRequest("100")
	req.Lines[1].Credit = dec("100.0005")

	_, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.NoError(err)
}

func (suite *JournalServiceTestSuite) TestPostEntry_UnknownAndInactiveAccounts() {
	req := suite.saleRequest("10")
	req.Lines[0].AccountID = "missing"
	_, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.ErrorIs(err, apperrors.ErrNotFound)

	suite.Require().NoError(suite.l.svc.Account.DeactivateAccount(suite.ctx, suite.revenue.AccountID, "ops"))
	_, err = suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("10"))
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *JournalServiceTestSuite) TestPostEntry_IdempotencyKeyReplays() {
	req := suite.saleRequest("40")
	key := "import-42"
	req.IdempotencyKey = &key

	first, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)
	again, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)

	suite.Equal(first.EntryID, again.EntryID)
	suite.True(dec("40").Equal(suite.l.balance(suite.T(), suite.cash.AccountID)))
}

func (suite *JournalServiceTestSuite) TestPostEntry_RetriesNumberCollision() {
	suite.l.post(suite.T(), suite.date, debit(suite.cash.AccountID, "1"), credit(suite.revenue.AccountID, "1"))
	suite.l.store.SetSequence(sequence.EntryPrefix, sequence.DateKey(suite.date), 0)

	entry, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("2"))

	suite.Require().NoError(err)
	suite.Equal("JE-20240315-0002", entry.EntryNumber)
}

func (suite *JournalServiceTestSuite) TestPostEntry_CompensatesOnFailure() {
	suite.l.store.FailOn("ApplyBalanceChanges", errors.New("disk full"))

	_, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("100"))

	suite.ErrorIs(err, apperrors.ErrTransient)
	count, err := suite.l.svc.Journal.CountEntries(suite.ctx, dto.ListEntriesParams{})
	suite.Require().NoError(err)
	suite.Zero(count)
	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())

	open, err := suite.l.repos.SagaRepo.ListStale(suite.ctx, time.Now().Add(time.Hour), 10)
	suite.Require().NoError(err)
	suite.Empty(open, "the failed posting must not leave an open saga")
	suite.Empty(suite.l.publisher.byTopic("test."+domain.TopicEntryCreated))
}

func (suite *JournalServiceTestSuite) TestPostEntry_NotificationFailureDoesNotFailPosting() {
	suite.l.publisher.err = errors.New("broker down")

	entry, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("10"))

	suite.Require().NoError(err)
	suite.Equal(domain.EntryPosted, entry.Status)
}

func (suite *JournalServiceTestSuite) TestPostEntry_MarksSourceDocumentJournalized() {
	req := dto.PostJournalEntryRequest{
		EntryDate:      suite.date,
		Lines:          []dto.JournalLineRequest{debit(suite.expense.AccountID, "300"), credit(suite.payable.AccountID, "300")},
		SourceDocument: &dto.SourceDocumentRequest{Service: domain.SourcePayables, DocumentID: "BILL-7"},
	}

	entry, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)

	suite.Require().Equal(1, suite.l.caller.callCount())
	call := suite.l.caller.calls[0]
	suite.Equal("/api/v1/bills/BILL-7/mark-journalized", call.Endpoint)
	suite.Equal(string(domain.SourcePayables), call.Service)
	var payload domain.MarkJournalizedPayload
	suite.Require().NoError(json.Unmarshal(call.Payload, &payload))
	suite.Equal(entry.EntryID, payload.JournalEntryID)
	suite.Equal(domain.EntryPosted, payload.Status)

	updates, err := suite.l.svc.Outbox.ListUpdates(suite.ctx, domain.UpdateFilter{EntryID: entry.EntryID})
	suite.Require().NoError(err)
	suite.Require().Len(updates, 1)
	suite.Equal(domain.UpdateCompleted, updates[0].Status)
	suite.Equal(updates[0].ID, call.IdempotencyKey)
}

func (suite *JournalServiceTestSuite) TestPostEntry_FailedDeliveryStaysQueued() {
	suite.l.caller.failures = 1
	req := dto.PostJournalEntryRequest{
		EntryDate:      suite.date,
		Lines:          []dto.JournalLineRequest{debit(suite.cash.AccountID, "80"), credit(suite.revenue.AccountID, "80")},
		SourceDocument: &dto.SourceDocumentRequest{Service: domain.SourceReceivables, DocumentID: "INV-9"},
	}

	entry, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)

	updates, err := suite.l.svc.Outbox.ListUpdates(suite.ctx, domain.UpdateFilter{EntryID: entry.EntryID})
	suite.Require().NoError(err)
	suite.Require().Len(updates, 1)
	suite.Equal(domain.UpdatePending, updates[0].Status)
	suite.Equal(1, updates[0].RetryCount)
	suite.Require().NotNil(updates[0].LastError)
	suite.Equal("/api/v1/invoices/INV-9/mark-journalized", updates[0].Endpoint)
}

func (suite *JournalServiceTestSuite) TestDraftLifecycle() {
	req := suite.saleRequest("70")
	req.Draft = true

	draft, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)
	suite.Equal(domain.EntryDraft, draft.Status)
	suite.NotEmpty(draft.EntryNumber)
	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())

	update := suite.saleRequest("75")
	updated, err := suite.l.svc.Journal.UpdateDraft(suite.ctx, draft.EntryID, update)
	suite.Require().NoError(err)
	suite.Equal(draft.EntryNumber, updated.EntryNumber)
	suite.Equal(domain.EntryDraft, updated.Status)

	posted, err := suite.l.svc.Journal.PostDraft(suite.ctx, draft.EntryID, "carol")
	suite.Require().NoError(err)
	suite.Equal(domain.EntryPosted, posted.Status)
	suite.True(dec("75").Equal(suite.l.balance(suite.T(), suite.cash.AccountID)))

	_, err = suite.l.svc.Journal.PostDraft(suite.ctx, draft.EntryID, "carol")
	suite.ErrorIs(err, apperrors.ErrConflict)
	_, err = suite.l.svc.Journal.UpdateDraft(suite.ctx, draft.EntryID, update)
	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.ErrorIs(suite.l.svc.Journal.DeleteDraft(suite.ctx, draft.EntryID, "carol"), apperrors.ErrConflict)

	suite.Contains(suite.l.publisher.topics(), "test."+domain.TopicEntryUpdated)
	suite.Contains(suite.l.publisher.topics(), "test."+domain.TopicStatusChanged)
}

func (suite *JournalServiceTestSuite) TestDeleteDraft() {
	req := suite.saleRequest("5")
	req.Draft = true
	draft, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.l.svc.Journal.DeleteDraft(suite.ctx, draft.EntryID, "dave"))

	_, err = suite.l.svc.Journal.GetEntry(suite.ctx, draft.EntryID)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.Len(suite.l.publisher.byTopic("test."+domain.TopicEntryDeleted), 1)
}

func (suite *JournalServiceTestSuite) TestReverseEntry() {
	original := suite.l.post(suite.T(), suite.date, debit(suite.cash.AccountID, "60"), credit(suite.revenue.AccountID, "60"))
	reversalDate := day(2024, time.March, 20)

	mirror, err := suite.l.svc.Journal.ReverseEntry(suite.ctx, original.EntryID, dto.ReverseEntryRequest{EntryDate: &reversalDate, Reason: "duplicate invoice"})
	suite.Require().NoError(err)

	suite.Equal(domain.EntryReversed, mirror.Status)
	suite.Equal("REV-"+original.EntryNumber, mirror.Reference)
	suite.Require().NotNil(mirror.ReversalOfID)
	suite.Equal(original.EntryID, *mirror.ReversalOfID)
	suite.True(dec("60").Equal(mirror.Lines[0].Credit))
	suite.Equal("JE-20240320-0001", mirror.EntryNumber)

	stored, err := suite.l.svc.Journal.GetEntry(suite.ctx, original.EntryID)
	suite.Require().NoError(err)
	suite.Equal(domain.EntryReversed, stored.Status)
	suite.Require().NotNil(stored.ReversedByID)
	suite.Equal(mirror.EntryID, *stored.ReversedByID)

	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())
	suite.True(suite.l.balance(suite.T(), suite.revenue.AccountID).IsZero())

	_, err = suite.l.svc.Journal.ReverseEntry(suite.ctx, original.EntryID, dto.ReverseEntryRequest{})
	suite.ErrorIs(err, apperrors.ErrConflict)
}

func (suite *JournalServiceTestSuite) TestListEntries_Paginates() {
	for i := 1; i <= 3; i++ {
		suite.l.post(suite.T(), day(2024, time.April, i), debit(suite.cash.AccountID, "1"), credit(suite.revenue.AccountID, "1"))
	}

	page, err := suite.l.svc.Journal.ListEntries(suite.ctx, dto.ListEntriesParams{Limit: 2})
	suite.Require().NoError(err)
	suite.Require().Len(page.Entries, 2)
	suite.Require().NotNil(page.NextToken)
	suite.Equal("JE-20240401-0001", page.Entries[0].EntryNumber)

	rest, err := suite.l.svc.Journal.ListEntries(suite.ctx, dto.ListEntriesParams{Limit: 2, NextToken: page.NextToken})
	suite.Require().NoError(err)
	suite.Require().Len(rest.Entries, 1)
	suite.Nil(rest.NextToken)
	suite.Equal("JE-20240403-0001", rest.Entries[0].EntryNumber)

	from := day(2024, time.April, 2)
	count, err := suite.l.svc.Journal.CountEntries(suite.ctx, dto.ListEntriesParams{From: &from})
	suite.Require().NoError(err)
	suite.Equal(2, count)
}

func (suite *JournalServiceTestSuite) TestPostEntry_ConcurrentPostingsNumberWithoutGaps() {
	const workers = 20
	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("2.50"))
			errs[i] = err
			if err == nil {
				numbers[i] = entry.EntryNumber
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		suite.Require().NoError(err)
	}
	sort.Strings(numbers)
	for i, number := range numbers {
		suite.Equal(fmt.Sprintf("JE-20240315-%04d", i+1), number)
	}
	suite.True(dec("50").Equal(suite.l.balance(suite.T(), suite.cash.AccountID)))
	suite.True(dec("50").Equal(suite.l.balance(suite.T(), suite.revenue.AccountID)))
}

func (suite *JournalServiceTestSuite) TestPostEntry_RechecksActiveInsideTransaction() {
	journal := services.NewJournalService(suite.l.repos, deactivatingReader{suite.l.svc.Account})

	_, err := journal.PostEntry(suite.ctx, suite.saleRequest("10"))

	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())
	count, err := suite.l.svc.Journal.CountEntries(suite.ctx, dto.ListEntriesParams{})
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *JournalServiceTestSuite) TestPostEntry_RejectsAmountsBeyondStoredScale() {
	_, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("0.00001"))
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *JournalServiceTestSuite) TestPostEntry_DailyNumberingExhausted() {
	suite.l.store.SetSequence(sequence.EntryPrefix, sequence.DateKey(suite.date), sequence.MaxValue)

	_, err := suite.l.svc.Journal.PostEntry(suite.ctx, suite.saleRequest("3"))

	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())
}

func (suite *JournalServiceTestSuite) TestPostEntry_KeyCollisionKeepsNumbering() {
	req := suite.saleRequest("40")
	key := "import-7"
	req.IdempotencyKey = &key
	first, err := suite.l.svc.Journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)

	repos := suite.l.repos
	repos.JournalRepo = &staleKeyLookup{JournalRepositoryFacade: suite.l.repos.JournalRepo, misses: 1}
	journal := services.NewJournalService(repos, suite.l.svc.Account)

	again, err := journal.PostEntry(suite.ctx, req)
	suite.Require().NoError(err)
	suite.Equal(first.EntryID, again.EntryID)

	next := suite.l.post(suite.T(), suite.date, debit(suite.cash.AccountID, "1"), credit(suite.revenue.AccountID, "1"))
	suite.Equal("JE-20240315-0002", next.EntryNumber)
	suite.True(dec("41").Equal(suite.l.balance(suite.T(), suite.cash.AccountID)))
}

func (suite *JournalServiceTestSuite) TestDeleteAccount_PostingCannotSlipIn() {
	done := make(chan error, 1)
	repo := &postingDuringDelete{
		AccountRepositoryFacade: suite.l.repos.AccountRepo,
		post: func() {
			_, err := suite.l.svc.Journal.PostEntry(context.Background(), dto.PostJournalEntryRequest{
				EntryDate: suite.date,
				Lines:     []dto.JournalLineRequest{debit(suite.expense.AccountID, "8"), credit(suite.cash.AccountID, "8")},
			})
			done <- err
		},
	}
	accounts := services.NewAccountService(suite.l.store, repo)

	suite.Require().NoError(accounts.DeleteAccount(suite.ctx, suite.expense.AccountID))

	select {
	case err := <-done:
		suite.ErrorIs(err, apperrors.ErrNotFound)
	case <-time.After(5 * time.Second):
		suite.FailNow("posting did not finish")
	}
	entries, err := suite.l.svc.Journal.ListEntries(suite.ctx, dto.ListEntriesParams{AccountID: suite.expense.AccountID})
	suite.Require().NoError(err)
	suite.Empty(entries.Entries)
	suite.True(suite.l.balance(suite.T(), suite.cash.AccountID).IsZero())
}

func TestJournalServiceTestSuite(t *testing.T) {
	suite.Run(t, new(JournalServiceTestSuite))
}
