package cheer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/domain/cheer"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/database"
	"github.com/cheers/cheers-api/internal/pkg/database/dbtest"
)

func newPostgresServices(t *testing.T) (*cheer.Service, *ledger.Service) {
	t.Helper()
	runner := database.NewTxRunner(dbtest.Open(t), 5)
	ledgerSvc := ledger.NewService(ledger.NewRepository(runner), 100, nil)
	return cheer.NewService(cheer.NewRepository(runner), ledgerSvc, nil, 50), ledgerSvc
}

func TestPostgresConcurrentRecognitionsNeverOverspend(t *testing.T) {
	svc, ledgerSvc := newPostgresServices(t)
	ctx := context.Background()
	giver, receiver := dbtest.Account("alice"), dbtest.Account("bob")

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Recognize(ctx, cheer.RecognizeInput{From: giver, To: receiver, Points: 10})
			if err != nil && !errors.Is(err, ledger.ErrQuotaExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	g, err := ledgerSvc.GetBalance(ctx, giver)
	require.NoError(t, err)
	assert.Equal(t, int64(100), g.QuotaUsed)
	require.NoError(t, g.CheckInvariants())

	r, err := ledgerSvc.GetBalance(ctx, receiver)
	require.NoError(t, err)
	assert.Equal(t, int64(100), r.AvailablePoints)
	assert.Equal(t, int64(100), r.TotalEarned)

	given, err := ledgerSvc.History(ctx, giver, ledger.HistoryFilter{Kind: ledger.KindGiven, Limit: 50})
	require.NoError(t, err)
	received, err := ledgerSvc.History(ctx, receiver, ledger.HistoryFilter{Kind: ledger.KindReceived, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, given, 10)
	assert.Len(t, received, 10)
}

func TestPostgresCrossRecognitionsDoNotDeadlock(t *testing.T) {
	svc, ledgerSvc := newPostgresServices(t)
	ctx := context.Background()
	a, b := dbtest.Account("alice"), dbtest.Account("bob")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Recognize(ctx, cheer.RecognizeInput{From: a, To: b, Points: 10})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Recognize(ctx, cheer.RecognizeInput{From: b, To: a, Points: 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []string{a, b} {
		bal, err := ledgerSvc.GetBalance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(100), bal.QuotaUsed, id)
		assert.Equal(t, int64(100), bal.AvailablePoints, id)
		require.NoError(t, bal.CheckInvariants())
	}
}
