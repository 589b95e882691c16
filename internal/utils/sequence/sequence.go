package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prefixes of the numbering series kept by the ledger.
const (
	EntryPrefix = "JE"
	BatchPrefix = "BATCH"
)

// MaxValue is the last counter value of a day. Numbers stay four digits wide so that
// their string order matches their allocation order.
const MaxValue = 9999

const dateLayout = "20060102"

// DateKey returns the day bucket a counter is kept under.
func DateKey(date time.Time) string {
	return date.UTC().Format(dateLayout)
}

// Format builds a number such as JE-20240131-0007.
func Format(prefix string, date time.Time, value int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, DateKey(date), value)
}

// Parse splits a formatted number into its prefix, date and counter value.
func Parse(number string) (string, time.Time, int64, error) {
	idx := strings.LastIndex(number, "-")
	if idx <= 0 {
		return "", time.Time{}, 0, fmt.Errorf("invalid sequence number %q", number)
	}
	head, tail := number[:idx], number[idx+1:]
	dateIdx := strings.LastIndex(head, "-")
	if dateIdx <= 0 {
		return "", time.Time{}, 0, fmt.Errorf("invalid sequence number %q", number)
	}

	date, err := time.Parse(dateLayout, head[dateIdx+1:])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("invalid sequence date in %q: %w", number, err)
	}
	value, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("invalid sequence value in %q: %w", number, err)
	}
	return head[:dateIdx], date, value, nil
}
