package shop_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
	"github.com/cheers/cheers-api/internal/store/memstore"
)

type fixture struct {
	svc     *shop.Service
	ledger  *ledger.Service
	store   *memstore.Store
	catalog *shop.StaticCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	ledgerSvc := ledger.NewService(store.Ledger(), 100, func() time.Time { return now })
	catalog := shop.NewStaticCatalog(
		shop.Product{ProductKey: shop.ProductKey{ProductRef: "mug"}, Name: "Mug", UnitCost: 30, Active: true},
		shop.Product{ProductKey: shop.ProductKey{ProductRef: "tee", VariationRef: "L"}, Name: "T-shirt - L", UnitCost: 45, Active: true},
		shop.Product{ProductKey: shop.ProductKey{ProductRef: "retired"}, Name: "Old hat", UnitCost: 10, Active: false},
	)
	return &fixture{
		svc:     shop.NewService(store.Shop(), catalog, ledgerSvc),
		ledger:  ledgerSvc,
		store:   store,
		catalog: catalog,
	}
}

func (f *fixture) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	_, _, err := f.ledger.Grant(context.Background(), ledger.Adjustment{
		AccountID: account, ActorAccount: "admin", Amount: amount, Reason: "seed",
	})
	require.NoError(t, err)
}

func (f *fixture) available(account string) int64 {
	b, _ := f.store.Balance(account)
	return b.AvailablePoints
}

func (f *fixture) countKind(kind ledger.Kind) int {
	n := 0
	for _, txn := range f.store.Transactions() {
		if txn.Kind == kind {
			n++
		}
	}
	return n
}

func mug(qty int) shop.LineItem { return shop.LineItem{ProductRef: "mug", Quantity: qty} }

func TestCheckoutDebitsAndSnapshotsPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 200)

	_, err := f.svc.AddToCart(ctx, "alice", mug(1))
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, "alice", shop.LineItem{ProductRef: "tee", VariationRef: "L", Quantity: 1})
	require.NoError(t, err)

	order, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(1), mug(1)})
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, order.Status)
	assert.Equal(t, int64(60), order.TotalCost)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "Mug", order.Items[0].ProductName)

	assert.Equal(t, int64(140), f.available("alice"))
	assert.Equal(t, 1, f.countKind(ledger.KindPurchase))

	cart, err := f.svc.ListCart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "tee", cart[0].ProductRef)

	f.catalog.Put(shop.Product{ProductKey: shop.ProductKey{ProductRef: "mug"}, Name: "Mug", UnitCost: 99, Active: true})
	stored, err := f.svc.GetOrder(ctx, order.ID, shop.Actor{AccountID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(30), stored.Items[0].UnitCost)
	assert.Equal(t, int64(60), stored.TotalCost)
}

func TestCheckoutCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 200)

	_, err := f.svc.AddToCart(ctx, "alice", mug(2))
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, "alice", mug(1))
	require.NoError(t, err)

	order, err := f.svc.CheckoutCart(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(90), order.TotalCost)

	cart, err := f.svc.ListCart(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cart)

	_, err = f.svc.CheckoutCart(ctx, "alice")
	assert.ErrorIs(t, err, shop.ErrEmptyCart)
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 50)

	_, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(2)})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = f.svc.Checkout(ctx, "alice", []shop.LineItem{{ProductRef: "retired", Quantity: 1}})
	assert.ErrorIs(t, err, shop.ErrProductUnavailable)

	_, err = f.svc.Checkout(ctx, "alice", []shop.LineItem{{ProductRef: "unknown", Quantity: 1}})
	assert.ErrorIs(t, err, shop.ErrProductUnavailable)

	_, err = f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(0)})
	assert.ErrorIs(t, err, shop.ErrInvalidQuantity)

	_, err = f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(60), mug(60)})
	assert.ErrorIs(t, err, shop.ErrInvalidQuantity)

	_, err = f.svc.Checkout(ctx, "alice", nil)
	assert.ErrorIs(t, err, shop.ErrEmptyCart)

	assert.Equal(t, int64(50), f.available("alice"))
	assert.Zero(t, f.countKind(ledger.KindPurchase))
}

func TestCancelPendingRefundsExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)

	order, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.available("alice"))

	_, err = f.svc.Cancel(ctx, order.ID, shop.Actor{AccountID: "mallory"}, "")
	assert.ErrorIs(t, err, shop.ErrOrderNotFound)

	cancelled, err := f.svc.Cancel(ctx, order.ID, shop.Actor{AccountID: "alice"}, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.Notes)
	assert.Equal(t, "changed my mind", *cancelled.Notes)

	assert.Equal(t, int64(100), f.available("alice"))
	assert.Equal(t, 1, f.countKind(ledger.KindRefund))

	b, _ := f.store.Balance("alice")
	assert.NoError(t, b.CheckInvariants())

	_, err = f.svc.Cancel(ctx, order.ID, shop.Actor{AccountID: "alice"}, "")
	assert.ErrorIs(t, err, shop.ErrInvalidOrderTransition)
	assert.Equal(t, 1, f.countKind(ledger.KindRefund))
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)

	order, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(1)})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, order.ID), shop.ErrOrderNotTerminal)
	_, err = f.svc.Complete(ctx, order.ID)
	assert.ErrorIs(t, err, shop.ErrInvalidOrderTransition)

	approved, err := f.svc.Approve(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusProcessing, approved.Status)
	assert.NotNil(t, approved.ProcessedAt)

	_, err = f.svc.Cancel(ctx, order.ID, shop.Actor{AccountID: "root", Admin: true}, "")
	assert.ErrorIs(t, err, shop.ErrInvalidOrderTransition)
	assert.Equal(t, int64(70), f.available("alice"))
	assert.Zero(t, f.countKind(ledger.KindRefund))

	completed, err := f.svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCompleted, completed.Status)

	_, err = f.svc.Cancel(ctx, order.ID, shop.Actor{AccountID: "alice"}, "")
	assert.ErrorIs(t, err, shop.ErrInvalidOrderTransition)

	ledgerBefore := len(f.store.Transactions())
	require.NoError(t, f.svc.Delete(ctx, order.ID))
	_, err = f.svc.GetOrder(ctx, order.ID, shop.Actor{AccountID: "alice"})
	assert.ErrorIs(t, err, shop.ErrOrderNotFound)
	assert.Len(t, f.store.Transactions(), ledgerBefore)
	assert.Equal(t, int64(70), f.available("alice"))

	_, err = f.svc.Approve(ctx, uuid.New())
	assert.ErrorIs(t, err, shop.ErrOrderNotFound)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)
	f.fund(t, "bob", 100)

	first, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(1)})
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, "bob", []shop.LineItem{mug(1)})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, first.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListOrders(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	pending, err := f.svc.ListOrdersByStatus(ctx, shop.StatusPending, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bob", pending[0].BuyerAccount)

	_, err = f.svc.ListOrdersByStatus(ctx, "shipped", 0, 0)
	assert.ErrorIs(t, err, shop.ErrInvalidStatus)
}

func TestConcurrentCheckoutsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 100)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(1)})
			if err != nil && !errors.Is(err, ledger.ErrInsufficientBalance) {
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

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(10), f.available("alice"))
	assert.Equal(t, 3, f.countKind(ledger.KindPurchase))
}

func TestCancelRacingCheckoutKeepsInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", 60)

	order, err := f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(2)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.svc.Cancel(ctx, order.ID, shop.Actor{AccountID: "alice"}, "")
	}()
	go func() {
		defer wg.Done()
		_, _ = f.svc.Checkout(ctx, "alice", []shop.LineItem{mug(1)})
	}()
	wg.Wait()

	b, _ := f.store.Balance("alice")
	require.NoError(t, b.CheckInvariants())
	assert.GreaterOrEqual(t, b.AvailablePoints, int64(0))
	assert.Equal(t, 1, f.countKind(ledger.KindRefund))
}
