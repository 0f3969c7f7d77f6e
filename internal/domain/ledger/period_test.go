package ledger

import (
	"testing"
	"time"
)

func TestPeriodOf(t *testing.T) {
	cases := []struct {
		at   time.Time
		want Period
	}{
		{time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), "2024-01"},
		{time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "2024-02"},
		// 2024-03-01 01:00 in UTC+3 is still February in UTC.
		{time.Date(2024, 3, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), "2024-02"},
	}
	for _, c := range cases {
		if got := PeriodOf(c.at); got != c.want {
			t.Errorf("PeriodOf(%s) = %s, want %s", c.at, got, c.want)
		}
	}
}

func TestPeriodOrdering(t *testing.T) {
	if !Period("2023-12").Before("2024-01") {
		t.Fatal("expected 2023-12 before 2024-01")
	}
	if Period("2024-01").Before("2024-01") {
		t.Fatal("period must not be before itself")
	}
	if got := Period("2024-04").Start(); !got.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", got)
	}
	if _, err := ParsePeriod("2024-13"); err == nil {
		t.Fatal("expected invalid month to fail")
	}
}

func TestBalanceInvariants(t *testing.T) {
	b := &Balance{AvailablePoints: 10, TotalEarned: 15, TotalSpent: 5, QuotaAllotment: 100, QuotaUsed: 100}
	if err := b.CheckInvariants(); err != nil {
		t.Fatalf("valid balance rejected: %v", err)
	}
	if b.QuotaRemaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", b.QuotaRemaining())
	}

	b.AvailablePoints = 11
	if err := b.CheckInvariants(); err != ErrInvariantViolation {
		t.Fatalf("expected invariant violation, got %v", err)
	}

	b.AvailablePoints = 10
	b.QuotaUsed = 101
	if err := b.CheckInvariants(); err != ErrInvariantViolation {
		t.Fatalf("expected quota violation, got %v", err)
	}
}

func TestWindowStart(t *testing.T) {
	// Wednesday.
	now := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)

	if got := WindowWeekly.Start(now); !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekly start = %s", got)
	}
	if got := WindowMonthly.Start(now); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monthly start = %s", got)
	}
	if got := WindowAllTime.Start(now); !got.IsZero() {
		t.Fatalf("all_time start = %s", got)
	}

	sunday := time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC)
	if got := WindowWeekly.Start(sunday); !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekly start on sunday = %s", got)
	}

	if _, err := ParseWindow("yearly"); err == nil {
		t.Fatal("expected yearly to be rejected")
	}
}
