package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const dateFormat = "2006-01-02"

// EncodeToken creates an opaque cursor from the sort key of the last entry on a page.
// Entries are ordered by entry date, then entry number.
func EncodeToken(entryDate time.Time, entryNumber string) string {
	tokenStr := fmt.Sprintf("%s|%s", entryDate.UTC().Format(dateFormat), entryNumber)
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeToken parses a cursor produced by EncodeToken.
func DecodeToken(token string) (time.Time, string, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return time.Time{}, "", fmt.Errorf("invalid pagination token format (split)")
	}

	entryDate, err := time.Parse(dateFormat, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid pagination token format (entry date parse): %w", err)
	}
	return entryDate, parts[1], nil
}

// After reports whether the (date, number) key sorts after the cursor key.
func After(entryDate time.Time, entryNumber string, cursorDate time.Time, cursorNumber string) bool {
	ed, cd := entryDate.UTC().Format(dateFormat), cursorDate.UTC().Format(dateFormat)
	if ed != cd {
		return ed > cd
	}
	return entryNumber > cursorNumber
}
