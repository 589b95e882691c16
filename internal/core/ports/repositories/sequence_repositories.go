package repositories

import "context"

// SequenceRepository hands out gap-tolerant counters per prefix and day.
type SequenceRepository interface {
	// NextValue increments and returns the counter for (prefix, dateKey), starting at 1.
	// Inside RunInTx the counter row stays locked until commit.
	NextValue(ctx context.Context, prefix, dateKey string) (int64, error)
}
