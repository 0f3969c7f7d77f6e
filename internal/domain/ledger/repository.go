package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cheers/cheers-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const balanceColumns = `account_id, available_points, total_earned, total_spent,
	quota_allotment, quota_used, last_reset_period, version, created_at, updated_at`

const transactionColumns = `id, from_account, to_account, kind, amount, description, message,
	correlation_id, cheer_id, order_id, period, actor_account, created_at`

// Repository is the Postgres-backed Store.
type Repository struct {
	runner *database.TxRunner
	db     database.Querier
}

func NewRepository(runner *database.TxRunner) *Repository {
	return &Repository{runner: runner, db: runner.DB()}
}

// WithTx runs fn in a retried transaction with ledger statements bound to it.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return r.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

func (r *Repository) EnsureBalance(ctx context.Context, seed *Balance) (*Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := insertBalanceIfAbsent(ctx, r.db, seed); err != nil {
		return nil, err
	}

	var b Balance
	if err := r.db.GetContext(ctx, &b, `SELECT `+balanceColumns+` FROM balances WHERE account_id = $1`, seed.AccountID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) GetBalance(ctx context.Context, accountID string) (*Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Balance
	err := r.db.GetContext(ctx, &b, `SELECT `+balanceColumns+` FROM balances WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListTransactions(ctx context.Context, accountID string, filter HistoryFilter) ([]*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter = filter.Normalize()
	where := []string{`((kind = 'given' AND from_account = $1) OR (kind <> 'given' AND to_account = $1))`}
	args := []interface{}{accountID}

	switch filter.Role {
	case RoleGiver:
		where = append(where, `from_account = $1`)
	case RoleReceiver:
		where = append(where, `to_account = $1`)
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf(`kind = $%d`, len(args)))
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, transactionColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]*Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toTransaction())
	}
	return out, nil
}

func (r *Repository) SumByAccount(ctx context.Context, kind Kind, since, until time.Time) ([]AccountTotal, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	party := "to_account"
	if kind == KindGiven {
		party = "from_account"
	}

	query := fmt.Sprintf(`
		SELECT %[1]s AS account_id, SUM(amount)::BIGINT AS total
		FROM transactions
		WHERE kind = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY %[1]s
		ORDER BY total DESC, account_id ASC
	`, party)

	var totals []AccountTotal
	if err := r.db.SelectContext(ctx, &totals, query, string(kind), since, until); err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *Repository) ListAccountsDueForReset(ctx context.Context, period Period, after string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT account_id
		FROM balances
		WHERE last_reset_period < $1 AND account_id > $2
		ORDER BY account_id
		LIMIT $3
	`, string(period), after, limit)
	return ids, err
}

// TxRepository binds ledger statements to an open transaction.
type TxRepository struct {
	tx *sqlx.Tx
}

func NewTxRepository(tx *sqlx.Tx) *TxRepository {
	return &TxRepository{tx: tx}
}

func (r *TxRepository) LockBalance(ctx context.Context, seed *Balance) (*Balance, error) {
	if err := insertBalanceIfAbsent(ctx, r.tx, seed); err != nil {
		return nil, err
	}

	var b Balance
	err := r.tx.GetContext(ctx, &b, `SELECT `+balanceColumns+` FROM balances WHERE account_id = $1 FOR UPDATE`, seed.AccountID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *TxRepository) UpdateBalance(ctx context.Context, b *Balance) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE balances
		SET available_points = $1, total_earned = $2, total_spent = $3,
			quota_allotment = $4, quota_used = $5, last_reset_period = $6,
			updated_at = $7, version = version + 1
		WHERE account_id = $8 AND version = $9
	`, b.AvailablePoints, b.TotalEarned, b.TotalSpent,
		b.QuotaAllotment, b.QuotaUsed, string(b.LastResetPeriod),
		b.UpdatedAt, b.AccountID, b.Version)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrStaleWrite
	}
	b.Version++
	return nil
}

func (r *TxRepository) InsertTransaction(ctx context.Context, t *Transaction) error {
	row := newTransactionRow(t)
	_, err := r.tx.NamedExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :from_account, :to_account, :kind, :amount, :description, :message,
			:correlation_id, :cheer_id, :order_id, :period, :actor_account, :created_at)
	`, row)
	return err
}

func insertBalanceIfAbsent(ctx context.Context, q database.Querier, seed *Balance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (account_id, quota_allotment, last_reset_period, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (account_id) DO NOTHING
	`, seed.AccountID, seed.QuotaAllotment, string(seed.LastResetPeriod), seed.CreatedAt)
	return err
}

// transactionRow is the flat column layout of a ledger entry.
type transactionRow struct {
	ID            uuid.UUID  `db:"id"`
	FromAccount   *string    `db:"from_account"`
	ToAccount     string     `db:"to_account"`
	Kind          string     `db:"kind"`
	Amount        int64      `db:"amount"`
	Description   string     `db:"description"`
	Message       string     `db:"message"`
	CorrelationID uuid.UUID  `db:"correlation_id"`
	CheerID       *uuid.UUID `db:"cheer_id"`
	OrderID       *uuid.UUID `db:"order_id"`
	Period        *string    `db:"period"`
	ActorAccount  *string    `db:"actor_account"`
	CreatedAt     time.Time  `db:"created_at"`
}

func newTransactionRow(t *Transaction) transactionRow {
	row := transactionRow{
		ID:            t.ID,
		FromAccount:   t.FromAccount,
		ToAccount:     t.ToAccount,
		Kind:          string(t.Kind),
		Amount:        t.Amount,
		Description:   t.Description,
		Message:       t.Message,
		CorrelationID: t.Metadata.CorrelationID,
		CheerID:       t.Metadata.CheerID,
		OrderID:       t.Metadata.OrderID,
		ActorAccount:  t.Metadata.ActorAccount,
		CreatedAt:     t.CreatedAt,
	}
	if t.Metadata.Period != nil {
		row.Period = ptr(string(*t.Metadata.Period))
	}
	return row
}

func (row transactionRow) toTransaction() *Transaction {
	t := &Transaction{
		ID:          row.ID,
		FromAccount: row.FromAccount,
		ToAccount:   row.ToAccount,
		Kind:        Kind(row.Kind),
		Amount:      row.Amount,
		Description: row.Description,
		Message:     row.Message,
		Metadata: Metadata{
			CorrelationID: row.CorrelationID,
			CheerID:       row.CheerID,
			OrderID:       row.OrderID,
			ActorAccount:  row.ActorAccount,
		},
		CreatedAt: row.CreatedAt,
	}
	if row.Period != nil {
		t.Metadata.Period = ptr(Period(*row.Period))
	}
	return t
}
