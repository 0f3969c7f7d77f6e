package leaderboard

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/logger"
)

type stubAggregator struct {
	totals []ledger.AccountTotal
	calls  int
	since  time.Time
	kind   ledger.Kind
}

func (a *stubAggregator) Aggregate(_ context.Context, kind ledger.Kind, since, _ time.Time) ([]ledger.AccountTotal, error) {
	a.calls++
	a.kind = kind
	a.since = since
	return a.totals, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, ledger.Window) (*Board, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, *Board) error { return errors.New("connection refused") }

func TestAssignRanksIsDense(t *testing.T) {
	entries := AssignRanks([]ledger.AccountTotal{
		{AccountID: "carol", Total: 30},
		{AccountID: "bob", Total: 50},
		{AccountID: "alice", Total: 50},
	})

	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 1, 2}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, "alice", entries[0].AccountID)
	assert.Equal(t, "bob", entries[1].AccountID)
	assert.Equal(t, "carol", entries[2].AccountID)

	assert.Empty(t, AssignRanks(nil))
}

func TestRankLiveThenCached(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	agg := &stubAggregator{totals: []ledger.AccountTotal{
		{AccountID: "alice", Total: 50}, {AccountID: "bob", Total: 50}, {AccountID: "carol", Total: 30},
	}}
	svc := NewService(agg, NewMemoryCache(), func() time.Time { return now })
	ctx := context.Background()

	b, err := svc.Rank(ctx, ledger.WindowWeekly, 0)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, b.Source)
	assert.Equal(t, ledger.KindReceived, agg.kind)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), agg.since)

	_, err = svc.RefreshCache(ctx, ledger.WindowWeekly)
	require.NoError(t, err)
	calls := agg.calls

	b, err = svc.Rank(ctx, ledger.WindowWeekly, 2)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, b.Source)
	assert.Equal(t, now, b.ComputedAt)
	assert.Len(t, b.Entries, 2)
	assert.Equal(t, calls, agg.calls)

	// A later read still sees the full cached board.
	full, err := svc.Rank(ctx, ledger.WindowWeekly, 10)
	require.NoError(t, err)
	assert.Len(t, full.Entries, 3)
}

func TestCachedSnapshotFromPreviousPeriodIsIgnored(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	agg := &stubAggregator{totals: []ledger.AccountTotal{{AccountID: "alice", Total: 10}}}
	svc := NewService(agg, NewMemoryCache(), clock)
	ctx := context.Background()

	_, err := svc.RefreshCache(ctx, ledger.WindowWeekly)
	require.NoError(t, err)

	now = now.Add(7 * 24 * time.Hour)
	b, err := svc.Rank(ctx, ledger.WindowWeekly, 0)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, b.Source)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), b.PeriodStart)
}

func TestBrokenCacheFallsBackToLive(t *testing.T) {
	agg := &stubAggregator{totals: []ledger.AccountTotal{{AccountID: "alice", Total: 10}}}
	svc := NewService(agg, brokenCache{}, nil)

	b, err := svc.Rank(context.Background(), ledger.WindowMonthly, 0)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, b.Source)
	assert.Len(t, b.Entries, 1)

	_, err = svc.RefreshCache(context.Background(), ledger.WindowMonthly)
	assert.Error(t, err)
	assert.Error(t, svc.RefreshAll(context.Background()))
}

func TestRankOf(t *testing.T) {
	agg := &stubAggregator{totals: []ledger.AccountTotal{
		{AccountID: "alice", Total: 50}, {AccountID: "bob", Total: 50}, {AccountID: "carol", Total: 30},
	}}
	svc := NewService(agg, nil, nil)
	ctx := context.Background()

	st, err := svc.RankOf(ctx, "carol", ledger.WindowAllTime)
	require.NoError(t, err)
	assert.True(t, st.Ranked)
	assert.Equal(t, 2, st.Rank)
	assert.Equal(t, int64(30), st.Total)
	assert.Equal(t, 3, st.OutOf)

	st, err = svc.RankOf(ctx, "dave", ledger.WindowAllTime)
	require.NoError(t, err)
	assert.False(t, st.Ranked)
	assert.Zero(t, st.Rank)

	_, err = svc.RankOf(ctx, "", ledger.WindowAllTime)
	assert.ErrorIs(t, err, ledger.ErrInvalidAccount)
}

func TestRefreshCacheLogsWithRequestScope(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := logger.WithRequestID(logger.WithContext(context.Background(), &base), "req-42")

	agg := &stubAggregator{totals: []ledger.AccountTotal{{AccountID: "alice", Total: 10}}}
	svc := NewService(agg, NewMemoryCache(), func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) })

	_, err := svc.RefreshCache(ctx, ledger.WindowWeekly)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Contains(t, buf.String(), "Leaderboard cache refreshed")
}
