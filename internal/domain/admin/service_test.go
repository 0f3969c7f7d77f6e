package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/domain/admin"
	"github.com/cheers/cheers-api/internal/domain/leaderboard"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
	"github.com/cheers/cheers-api/internal/store/memstore"
)

type recordingSink struct {
	entries chan admin.AuditLog
	err     error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{entries: make(chan admin.AuditLog, 16)}
}

func (s *recordingSink) LogAdminAction(_ context.Context, entry admin.AuditLog) error {
	s.entries <- entry
	return s.err
}

func (s *recordingSink) next(t *testing.T) admin.AuditLog {
	t.Helper()
	select {
	case e := <-s.entries:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no audit entry recorded")
		return admin.AuditLog{}
	}
}

func (s *recordingSink) empty(t *testing.T) {
	t.Helper()
	select {
	case e := <-s.entries:
		t.Fatalf("unexpected audit entry %s", e.Action)
	case <-time.After(50 * time.Millisecond):
	}
}

type fixture struct {
	svc    *admin.Service
	shop   *shop.Service
	ledger *ledger.Service
	store  *memstore.Store
	sink   *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ledgerSvc := ledger.NewService(store.Ledger(), 100, clock)
	catalog := shop.NewStaticCatalog(
		shop.Product{ProductKey: shop.ProductKey{ProductRef: "mug"}, Name: "Mug", UnitCost: 30, Active: true},
	)
	shopSvc := shop.NewService(store.Shop(), catalog, ledgerSvc)
	lb := leaderboard.NewService(ledgerSvc, leaderboard.NewMemoryCache(), clock)
	sink := newRecordingSink()

	return &fixture{
		svc:    admin.NewService(ledgerSvc, shopSvc, lb, sink),
		shop:   shopSvc,
		ledger: ledgerSvc,
		store:  store,
		sink:   sink,
	}
}

func TestGrantAndDeductAreAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, txn, err := f.svc.GrantPoints(ctx, "root", "alice", 250, "hackathon prize")
	require.NoError(t, err)
	assert.Equal(t, int64(250), b.AvailablePoints)
	assert.Equal(t, ledger.KindAdminGrant, txn.Kind)

	entry := f.sink.next(t)
	assert.Equal(t, admin.ActionPointsGrant, entry.Action)
	assert.Equal(t, "root", entry.ActorAccount)
	assert.Equal(t, admin.TargetAccount, entry.TargetType)
	assert.Equal(t, "alice", entry.TargetID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, float64(250), details["amount"])
	assert.Equal(t, "hackathon prize", details["reason"])

	b, _, err = f.svc.DeductPoints(ctx, "root", "alice", 50, "correction")
	require.NoError(t, err)
	assert.Equal(t, int64(200), b.AvailablePoints)
	assert.Equal(t, admin.ActionPointsDeduct, f.sink.next(t).Action)
}

func TestDeductBeyondBalanceFailsWithoutAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.GrantPoints(ctx, "root", "alice", 10, "seed")
	require.NoError(t, err)
	f.sink.next(t)

	_, _, err = f.svc.DeductPoints(ctx, "root", "alice", 11, "too much")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	f.sink.empty(t)

	b, ok := f.store.Balance("alice")
	require.True(t, ok)
	assert.Equal(t, int64(10), b.AvailablePoints)
}

func TestOrderLifecycleByAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.GrantPoints(ctx, "root", "bob", 100, "seed")
	require.NoError(t, err)
	f.sink.next(t)

	order, err := f.shop.Checkout(ctx, "bob", []shop.LineItem{{ProductRef: "mug", Quantity: 2}})
	require.NoError(t, err)

	pending, err := f.svc.ListOrders(ctx, shop.StatusPending, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.svc.ApproveOrder(ctx, "root", order.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.ActionOrderApprove, f.sink.next(t).Action)

	err = f.svc.DeleteOrder(ctx, "root", order.ID)
	assert.ErrorIs(t, err, shop.ErrOrderNotTerminal)
	f.sink.empty(t)

	cancelled, err := f.svc.CancelOrder(ctx, "root", order.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCancelled, cancelled.Status)

	entry := f.sink.next(t)
	assert.Equal(t, admin.ActionOrderCancel, entry.Action)
	assert.Equal(t, order.ID.String(), entry.TargetID)

	b, _ := f.store.Balance("bob")
	assert.Equal(t, int64(100), b.AvailablePoints)

	require.NoError(t, f.svc.DeleteOrder(ctx, "root", order.ID))
	assert.Equal(t, admin.ActionOrderDelete, f.sink.next(t).Action)
}

func TestRefreshLeaderboardAndResetQuotas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	board, err := f.svc.RefreshLeaderboard(ctx, "root", ledger.WindowMonthly)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.SourceLive, board.Source)
	entry := f.sink.next(t)
	assert.Equal(t, admin.ActionLeaderboardRefresh, entry.Action)
	assert.Equal(t, "monthly", entry.TargetID)

	report, err := f.svc.ResetQuotas(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, ledger.Period("2024-03"), report.Period)
	assert.Equal(t, admin.ActionQuotaReset, f.sink.next(t).Action)
}

func TestFailingSinkDoesNotFailAction(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("audit store down")

	_, _, err := f.svc.GrantPoints(context.Background(), "root", "carol", 5, "thanks")
	require.NoError(t, err)
	f.sink.next(t)
}
