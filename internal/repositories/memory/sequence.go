package memory

import (
	"context"

	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
)

type sequenceRepository struct {
	store *Store
}

var _ portsrepo.SequenceRepository = (*sequenceRepository)(nil)

func (r *sequenceRepository) NextValue(ctx context.Context, prefix, dateKey string) (int64, error) {
	var next int64
	err := r.store.write(ctx, "NextValue", func(d *state) error {
		key := prefix + "|" + dateKey
		d.sequences[key]++
		next = d.sequences[key]
		return nil
	})
	return next, err
}

// SetSequence forces the counter for (prefix, dateKey). Tests use it to provoke number collisions.
func (s *Store) SetSequence(prefix, dateKey string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.sequences[prefix+"|"+dateKey] = value
}
