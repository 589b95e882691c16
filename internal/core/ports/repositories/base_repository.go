package repositories

import (
	"context"
)

// TransactionManager runs units of work atomically. The active transaction travels in the
// context, so repositories called with that context take part in it.
type TransactionManager interface {
	// RunInTx executes fn inside a read-write transaction. The transaction commits when fn
	// returns nil and rolls back on error or panic. Nested calls join the outer transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSnapshot executes fn against a consistent read-only view of the data.
	RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}
