package leaderboard

import (
	"sort"
	"time"

	"github.com/cheers/cheers-api/internal/domain/ledger"
)

const (
	SourceCache = "cache"
	SourceLive  = "live"

	defaultLimit = 10
	maxLimit     = 100
)

// Entry is one ranked receiver.
type Entry struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Total     int64  `json:"total"`
}

// Board is the full ranking of a window at ComputedAt.
type Board struct {
	Window      ledger.Window `json:"window"`
	PeriodStart time.Time     `json:"period_start"`
	ComputedAt  time.Time     `json:"computed_at"`
	Source      string        `json:"source"`
	Entries     []Entry       `json:"entries"`
}

// Standing is one account's place on a board.
type Standing struct {
	Window     ledger.Window `json:"window"`
	AccountID  string        `json:"account_id"`
	Ranked     bool          `json:"ranked"`
	Rank       int           `json:"rank,omitempty"`
	Total      int64         `json:"total"`
	OutOf      int           `json:"out_of"`
	ComputedAt time.Time     `json:"computed_at"`
	Source     string        `json:"source"`
}

// AssignRanks orders totals by amount descending, then account id, and gives
// equal totals the same rank. Ranks are dense: [50, 50, 30] ranks [1, 1, 2].
func AssignRanks(totals []ledger.AccountTotal) []Entry {
	sorted := make([]ledger.AccountTotal, len(totals))
	copy(sorted, totals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Total != sorted[j].Total {
			return sorted[i].Total > sorted[j].Total
		}
		return sorted[i].AccountID < sorted[j].AccountID
	})

	entries := make([]Entry, 0, len(sorted))
	rank := 0
	for i, t := range sorted {
		if i == 0 || t.Total != sorted[i-1].Total {
			rank++
		}
		entries = append(entries, Entry{Rank: rank, AccountID: t.AccountID, Total: t.Total})
	}
	return entries
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
