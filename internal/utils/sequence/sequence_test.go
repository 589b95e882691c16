package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	date := time.Date(2024, 1, 31, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "JE-20240131-0001", Format(EntryPrefix, date, 1))
	assert.Equal(t, "BATCH-20240131-0042", Format(BatchPrefix, date, 42))
	assert.Equal(t, "JE-20240131-9999", Format(EntryPrefix, date, MaxValue))
}

func TestParse(t *testing.T) {
	prefix, date, value, err := Parse("BATCH-20240229-0107")
	require.NoError(t, err)
	assert.Equal(t, BatchPrefix, prefix)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), date)
	assert.Equal(t, int64(107), value)

	for _, bad := range []string{"", "JE", "JE-0001", "JE-2024XX01-0001", "JE-20240101-abc"} {
		_, _, _, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
