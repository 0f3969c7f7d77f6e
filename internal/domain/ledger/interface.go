package ledger

import (
	"context"
	"time"
)

// Tx is the balance and ledger surface available inside one atomic unit.
// Other domains embed it in their own transaction types so a recognition or
// checkout commits its balance, ledger and domain rows together.
type Tx interface {
	// LockBalance creates the balance from seed if absent and locks it until commit.
	LockBalance(ctx context.Context, seed *Balance) (*Balance, error)
	// UpdateBalance persists b if its version is unchanged and bumps b.Version.
	UpdateBalance(ctx context.Context, b *Balance) error
	InsertTransaction(ctx context.Context, t *Transaction) error
}

// Store is the persistence boundary of the ledger.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	EnsureBalance(ctx context.Context, seed *Balance) (*Balance, error)
	// GetBalance reads a balance without creating or locking it. Returns
	// ErrBalanceNotFound for an unknown account.
	GetBalance(ctx context.Context, accountID string) (*Balance, error)
	ListTransactions(ctx context.Context, accountID string, filter HistoryFilter) ([]*Transaction, error)
	// SumByAccount totals kind entries in [since, until) per account. Given
	// entries are grouped by giver, every other kind by its to party.
	SumByAccount(ctx context.Context, kind Kind, since, until time.Time) ([]AccountTotal, error)
	// ListAccountsDueForReset pages, by ascending id after the cursor, through
	// accounts whose last reset precedes period.
	ListAccountsDueForReset(ctx context.Context, period Period, after string, limit int) ([]string, error)
}
