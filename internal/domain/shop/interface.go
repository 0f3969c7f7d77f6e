package shop

import (
	"context"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/ledger"
)

// Tx extends the ledger unit of work with order and cart writes.
type Tx interface {
	ledger.Tx
	InsertOrder(ctx context.Context, o *Order) error
	// LockOrder loads the order with its items and locks it until commit.
	LockOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	DeleteCartLines(ctx context.Context, accountID string, keys []ProductKey) error
}

// Store is the persistence boundary of orders and carts.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]*Order, error)

	// UpsertCartItem adds item's quantity to any existing line for the same product.
	UpsertCartItem(ctx context.Context, item *CartItem) (*CartItem, error)
	ListCart(ctx context.Context, accountID string) ([]*CartItem, error)
	RemoveCartItem(ctx context.Context, accountID string, id uuid.UUID) error
}

// Catalog resolves product references to names and prices. It is owned by
// the catalog service; only active entries are returned.
type Catalog interface {
	Lookup(ctx context.Context, keys []ProductKey) (map[ProductKey]Product, error)
}
