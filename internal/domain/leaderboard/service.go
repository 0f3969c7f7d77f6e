package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/logger"
)

// Aggregator sums ledger entries per account. Satisfied by *ledger.Service.
type Aggregator interface {
	Aggregate(ctx context.Context, kind ledger.Kind, since, until time.Time) ([]ledger.AccountTotal, error)
}

// Service ranks accounts by points received from recognitions.
type Service struct {
	agg   Aggregator
	cache Cache
	now   func() time.Time
}

func NewService(agg Aggregator, cache Cache, now func() time.Time) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{agg: agg, cache: cache, now: now}
}

// compute builds the board live. Only received entries count; purchases,
// refunds and admin adjustments never move a ranking.
func (s *Service) compute(ctx context.Context, window ledger.Window) (*Board, error) {
	now := s.now().UTC()
	start := window.Start(now)

	totals, err := s.agg.Aggregate(ctx, ledger.KindReceived, start, now.Add(time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", window, err)
	}
	return &Board{
		Window:      window,
		PeriodStart: start,
		ComputedAt:  now,
		Source:      SourceLive,
		Entries:     AssignRanks(totals),
	}, nil
}

// board serves the cached snapshot when it belongs to the current window
// period, otherwise computes live. A broken cache never fails the read.
func (s *Service) board(ctx context.Context, window ledger.Window) (*Board, error) {
	cached, err := s.cache.Get(ctx, window)
	switch {
	case err == nil:
		if cached.PeriodStart.Equal(window.Start(s.now())) {
			cached.Source = SourceCache
			return cached, nil
		}
	case !errors.Is(err, ErrCacheMiss):
		logger.FromContext(ctx).Warn().Err(err).Str("window", string(window)).Msg("Leaderboard cache read failed, computing live")
	}
	return s.compute(ctx, window)
}

// Rank returns the top limit entries of window.
func (s *Service) Rank(ctx context.Context, window ledger.Window, limit int) (*Board, error) {
	b, err := s.board(ctx, window)
	if err != nil {
		return nil, err
	}
	if limit = normalizeLimit(limit); len(b.Entries) > limit {
		b.Entries = b.Entries[:limit]
	}
	return b, nil
}

// RankOf returns where account stands in window. An account with no received
// points in the window is reported unranked.
func (s *Service) RankOf(ctx context.Context, accountID string, window ledger.Window) (*Standing, error) {
	if err := ledger.ValidateAccount(accountID); err != nil {
		return nil, err
	}
	b, err := s.board(ctx, window)
	if err != nil {
		return nil, err
	}

	st := &Standing{
		Window:     window,
		AccountID:  accountID,
		OutOf:      len(b.Entries),
		ComputedAt: b.ComputedAt,
		Source:     b.Source,
	}
	for _, e := range b.Entries {
		if e.AccountID == accountID {
			st.Ranked = true
			st.Rank = e.Rank
			st.Total = e.Total
			break
		}
	}
	return st, nil
}

// RefreshCache recomputes window and stores the snapshot.
func (s *Service) RefreshCache(ctx context.Context, window ledger.Window) (*Board, error) {
	b, err := s.compute(ctx, window)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, b); err != nil {
		return nil, fmt.Errorf("store %s snapshot: %w", window, err)
	}

	logger.FromContext(ctx).Info().
		Str("window", string(window)).
		Int("entries", len(b.Entries)).
		Time("computed_at", b.ComputedAt).
		Msg("Leaderboard cache refreshed")
	return b, nil
}

// RefreshAll refreshes every window, continuing past failures.
func (s *Service) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, w := range ledger.Windows {
		if _, err := s.RefreshCache(ctx, w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
