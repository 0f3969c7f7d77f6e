package ledger

import (
	"fmt"
	"time"
)

// Window is a calendar-aligned UTC time range ending now.
type Window string

const (
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
	WindowAllTime Window = "all_time"
)

// Windows lists every supported window.
var Windows = []Window{WindowWeekly, WindowMonthly, WindowAllTime}

func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case WindowWeekly, WindowMonthly, WindowAllTime:
		return w, nil
	}
	return "", fmt.Errorf("invalid window %q", s)
}

// Start returns the lower bound of the window containing now. Weeks start on
// Monday 00:00 UTC, months on the 1st; all_time has no lower bound.
func (w Window) Start(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch w {
	case WindowWeekly:
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}
