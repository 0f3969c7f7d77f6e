package shop

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/pkg/database"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(database.NewTxRunner(sqlx.NewDb(db, "postgres"), 0)), mock
}

var cartCols = []string{"id", "account_id", "product_ref", "variation_ref", "quantity", "created_at", "updated_at"}

func TestRepositoryUpsertCartItemOverLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	item := &CartItem{ID: uuid.New(), AccountID: "alice", ProductRef: "mug", Quantity: 5, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`(?s)INSERT INTO cart_items.*ON CONFLICT.*RETURNING`).
		WithArgs(item.ID, "alice", "mug", "", 5, now, now, maxLineQuantity).
		WillReturnRows(sqlmock.NewRows(cartCols))

	_, err := repo.UpsertCartItem(context.Background(), item)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpsertCartItemMerges(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	existingID := uuid.New()
	item := &CartItem{ID: uuid.New(), AccountID: "alice", ProductRef: "mug", Quantity: 2, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(`(?s)INSERT INTO cart_items.*ON CONFLICT.*RETURNING`).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(existingID, "alice", "mug", "", 7, now, now))

	out, err := repo.UpsertCartItem(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, existingID, out.ID)
	assert.Equal(t, 7, out.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryLockOrderNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM orders WHERE id = \$1 FOR UPDATE`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockOrder(ctx, id)
		return err
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRemoveCartItemScopedToAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM cart_items WHERE id = \$1 AND account_id = \$2`).
		WithArgs(id, "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveCartItem(context.Background(), "bob", id)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
