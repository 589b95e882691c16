package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeToken(t *testing.T) {
	entryDate := time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC)

	token := EncodeToken(entryDate, "JE-20230515-0003")
	assert.NotEmpty(t, token)

	decodedDate, decodedNumber, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, entryDate, decodedDate)
	assert.Equal(t, "JE-20230515-0003", decodedNumber)
}

func TestDecodeTokenError(t *testing.T) {
	_, _, err := DecodeToken("this is not base64!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base64 decode")

	_, _, err = DecodeToken(base64.URLEncoding.EncodeToString([]byte("no-separator")))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "split")

	_, _, err = DecodeToken(base64.URLEncoding.EncodeToString([]byte("15/05/2023|JE-1")))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "entry date parse")
}

func TestAfter(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	assert.True(t, After(day2, "JE-20240302-0001", day1, "JE-20240301-0009"))
	assert.False(t, After(day1, "JE-20240301-0009", day2, "JE-20240302-0001"))
	assert.True(t, After(day1, "JE-20240301-0002", day1, "JE-20240301-0001"))
	assert.False(t, After(day1, "JE-20240301-0001", day1, "JE-20240301-0001"))
}
