// Package memory implements every repository port on in-process maps. It backs the
// "memory" storage driver and the behavioural tests of the services.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
)

// ErrReadOnly is returned when a write is attempted inside RunInSnapshot.
var ErrReadOnly = errors.New("memory: write inside read-only snapshot")

type txKey struct{}

type snapshotKey struct{}

type state struct {
	accounts  map[string]domain.Account
	entries   map[string]domain.JournalEntry
	batches   map[string]domain.Batch
	items     map[string][]domain.BatchItem
	updates   map[string]domain.PendingServiceUpdate
	sagas     map[string]domain.PostingSaga
	sequences map[string]int64
}

func newState() *state {
	return &state{
		accounts:  map[string]domain.Account{},
		entries:   map[string]domain.JournalEntry{},
		batches:   map[string]domain.Batch{},
		items:     map[string][]domain.BatchItem{},
		updates:   map[string]domain.PendingServiceUpdate{},
		sagas:     map[string]domain.PostingSaga{},
		sequences: map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]domain.JournalLine(nil), v.Lines...)
		c.entries[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]domain.BatchItem(nil), v...)
	}
	for k, v := range s.updates {
		c.updates[k] = v
	}
	for k, v := range s.sagas {
		c.sagas[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store is a mutex-guarded set of maps. Transactions serialize writers and restore the
// previous state when the unit of work fails.
type Store struct {
	mu   sync.RWMutex
	data *state

	// FailOn lets tests inject an error for a named operation, e.g. "ApplyBalanceChanges".
	failMu sync.Mutex
	failOn map[string]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState(), failOn: map[string]error{}}
}

var _ portsrepo.TransactionManager = (*Store)(nil)

// RunInTx executes fn while holding the write lock. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	if inSnapshot(ctx) {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = saved
			panic(p)
		}
		if err != nil {
			s.data = saved
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

// RunInSnapshot executes fn while holding the read lock so that all reads observe one state.
func (s *Store) RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) || inSnapshot(ctx) {
		return fn(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, snapshotKey{}, true))
}

// FailOn makes the next call of op return err. A nil err clears the injection.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err, ok := s.failOn[op]
	if ok {
		delete(s.failOn, op)
	}
	return err
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func inSnapshot(ctx context.Context) bool {
	v, _ := ctx.Value(snapshotKey{}).(bool)
	return v
}

// read runs fn under the read lock unless ctx already holds a lock.
func (s *Store) read(ctx context.Context, fn func(d *state) error) error {
	if inTx(ctx) || inSnapshot(ctx) {
		return fn(s.data)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// write runs fn under the write lock unless ctx already holds it. Writes in a snapshot fail.
func (s *Store) write(ctx context.Context, op string, fn func(d *state) error) error {
	if err := s.injected(op); err != nil {
		return err
	}
	if inSnapshot(ctx) && !inTx(ctx) {
		return ErrReadOnly
	}
	if inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// NewRepositoryProvider exposes the store through every repository port.
func NewRepositoryProvider(store *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:     store,
		AccountRepo:   &accountRepository{store},
		JournalRepo:   &journalRepository{store},
		BatchRepo:     &batchRepository{store},
		OutboxRepo:    &outboxRepository{store},
		SagaRepo:      &sagaRepository{store},
		SequenceRepo:  &sequenceRepository{store},
		ReportingRepo: &reportingRepository{store},
	}
}
