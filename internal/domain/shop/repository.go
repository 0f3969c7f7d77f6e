package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const orderColumns = `id, buyer_account, total_cost, status, notes, created_at, updated_at,
	processed_at, completed_at, cancelled_at`

const orderItemColumns = `id, order_id, position, product_ref, variation_ref, product_name, unit_cost, quantity`

const cartColumns = `id, account_id, product_ref, variation_ref, quantity, created_at, updated_at`

// Repository is the Postgres-backed Store.
type Repository struct {
	runner *database.TxRunner
	db     database.Querier
}

func NewRepository(runner *database.TxRunner) *Repository {
	return &Repository{runner: runner, db: runner.DB()}
}

type txRepository struct {
	*ledger.TxRepository
	tx *sqlx.Tx
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return r.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

func (t *txRepository) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :buyer_account, :total_cost, :status, :notes, :created_at, :updated_at,
			:processed_at, :completed_at, :cancelled_at)
	`, o)
	if err != nil {
		return err
	}

	for i := range o.Items {
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO order_items (`+orderItemColumns+`)
			VALUES (:id, :order_id, :position, :product_ref, :variation_ref, :product_name, :unit_cost, :quantity)
		`, &o.Items[i]); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	return nil
}

func (t *txRepository) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := t.tx.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := t.tx.SelectContext(ctx, &o.Items, `
		SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY position
	`, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *txRepository) UpdateOrder(ctx context.Context, o *Order) error {
	res, err := t.tx.NamedExecContext(ctx, `
		UPDATE orders
		SET status = :status, notes = :notes, updated_at = :updated_at,
			processed_at = :processed_at, completed_at = :completed_at, cancelled_at = :cancelled_at
		WHERE id = :id
	`, o)
	return expectOne(res, err, ErrOrderNotFound)
}

func (t *txRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return expectOne(res, err, ErrOrderNotFound)
}

func (t *txRepository) DeleteCartLines(ctx context.Context, accountID string, keys []ProductKey) error {
	for _, k := range keys {
		if _, err := t.tx.ExecContext(ctx, `
			DELETE FROM cart_items WHERE account_id = $1 AND product_ref = $2 AND variation_ref = $3
		`, accountID, k.ProductRef, k.VariationRef); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	orders := []*Order{&o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) ListOrders(ctx context.Context, q OrderQuery) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q = q.Normalize()
	var (
		where []string
		args  []interface{}
	)
	if q.BuyerAccount != "" {
		args = append(args, q.BuyerAccount)
		where = append(where, fmt.Sprintf("buyer_account = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []*Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID.String())
		byID[o.ID] = o
		o.Items = []OrderItem{}
	}

	var items []OrderItem
	if err := r.db.SelectContext(ctx, &items, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(ids)); err != nil {
		return err
	}
	for _, it := range items {
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return nil
}

// UpsertCartItem merges into an existing line. A merge that would exceed the
// per-line maximum updates nothing and fails ErrInvalidQuantity.
func (r *Repository) UpsertCartItem(ctx context.Context, item *CartItem) (*CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out CartItem
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO cart_items (`+cartColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, product_ref, variation_ref) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		WHERE cart_items.quantity + EXCLUDED.quantity <= $8
		RETURNING `+cartColumns,
		item.ID, item.AccountID, item.ProductRef, item.VariationRef, item.Quantity,
		item.CreatedAt, item.UpdatedAt, maxLineQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidQuantity
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) ListCart(ctx context.Context, accountID string) ([]*CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items := []*CartItem{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+cartColumns+` FROM cart_items WHERE account_id = $1 ORDER BY created_at, id
	`, accountID)
	return items, err
}

func (r *Repository) RemoveCartItem(ctx context.Context, accountID string, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND account_id = $2`, id, accountID)
	return expectOne(res, err, ErrCartItemNotFound)
}

func expectOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
