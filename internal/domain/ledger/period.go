package ledger

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is a calendar month in UTC, formatted YYYY-MM.
type Period string

// PeriodOf returns the UTC calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format(periodLayout))
}

// ParsePeriod validates a YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	if _, err := time.Parse(periodLayout, s); err != nil {
		return "", fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Period(s), nil
}

// Before reports whether p is an earlier month than other. The fixed-width
// layout makes string order equal to calendar order.
func (p Period) Before(other Period) bool {
	return p < other
}

// Start returns the first instant of the month.
func (p Period) Start() time.Time {
	t, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (p Period) String() string {
	return string(p)
}
