package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/core/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/SscSPs/general_ledger/internal/platform/config"
	"github.com/SscSPs/general_ledger/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	Topic   string
	Key     string
	Payload []byte
}

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic
	}
	return out
}

func (p *recordingPublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// stubCaller records calls and fails while failures remain.
type stubCaller struct {
	mu       sync.Mutex
	calls    []portssvc.ServiceRequest
	failures int
}

func (c *stubCaller) Call(_ context.Context, req portssvc.ServiceRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if c.failures > 0 {
		c.failures--
		return errors.New("service unavailable")
	}
	return nil
}

func (c *stubCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func testConfig() *config.Config {
	return &config.Config{
		TopicPrefix:          "test.",
		OutboxPollInterval:   time.Hour,
		OutboxMaxRetries:     3,
		OutboxBaseDelay:      time.Second,
		OutboxMaxDelay:       time.Minute,
		OutboxBatchSize:      10,
		OutboxLease:          time.Minute,
		SequenceMaxRetries:   3,
		SagaRecoveryAge:      time.Minute,
		SagaRecoveryInterval: time.Hour,
		BatchStaleAfter:      time.Minute,
	}
}

// ledger wires every service over an in-memory store.
type ledger struct {
	store     *memory.Store
	repos     portsrepo.RepositoryProvider
	publisher *recordingPublisher
	caller    *stubCaller
	svc       *portssvc.ServiceContainer
}

func newLedger() *ledger {
	store := memory.NewStore()
	l := &ledger{
		store:     store,
		repos:     memory.NewRepositoryProvider(store),
		publisher: &recordingPublisher{},
		caller:    &stubCaller{},
	}
	l.svc = services.NewServiceContainer(testConfig(), l.repos, l.publisher, l.caller)
	return l
}

func (l *ledger) account(t *testing.T, code string, typ domain.AccountType, subtype domain.AccountSubtype) *domain.Account {
	t.Helper()
	acc, err := l.svc.Account.CreateAccount(context.Background(), dto.CreateAccountRequest{
		Code:        code,
		Name:        code + " account",
		AccountType: typ,
		Subtype:     subtype,
	})
	require.NoError(t, err)
	return acc
}

func (l *ledger) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	acc, err := l.svc.Account.GetAccountByID(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

func (l *ledger) post(t *testing.T, date time.Time, lines ...dto.JournalLineRequest) *domain.JournalEntry {
	t.Helper()
	entry, err := l.svc.Journal.PostEntry(context.Background(), dto.PostJournalEntryRequest{
		EntryDate: date,
		Lines:     lines,
	})
	require.NoError(t, err)
	return entry
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func debit(accountID, amount string) dto.JournalLineRequest {
	return dto.JournalLineRequest{AccountID: accountID, Debit: dec(amount)}
}

func credit(accountID, amount string) dto.JournalLineRequest {
	return dto.JournalLineRequest{AccountID: accountID, Credit: dec(amount)}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
