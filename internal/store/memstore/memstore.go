// Package memstore is an in-process implementation of the ledger, cheer and
// shop stores. One mutex serialises every unit of work, and a unit runs
// against a copy of the state that replaces the live state only on success,
// so rollback semantics match the Postgres repositories. Used for local runs
// without a database and by service tests.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/cheer"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
)

type likeKey struct {
	cheerID   uuid.UUID
	accountID string
}

type state struct {
	balances map[string]ledger.Balance
	txns     []*ledger.Transaction
	cheers   map[uuid.UUID]cheer.Cheer
	comments map[uuid.UUID]cheer.Comment
	likes    map[likeKey]struct{}
	orders   map[uuid.UUID]shop.Order
	cart     map[uuid.UUID]shop.CartItem
}

func newState() *state {
	return &state{
		balances: map[string]ledger.Balance{},
		cheers:   map[uuid.UUID]cheer.Cheer{},
		comments: map[uuid.UUID]cheer.Comment{},
		likes:    map[likeKey]struct{}{},
		orders:   map[uuid.UUID]shop.Order{},
		cart:     map[uuid.UUID]shop.CartItem{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.balances {
		c.balances[k] = v
	}
	// Ledger entries are immutable once appended.
	c.txns = append(c.txns, s.txns...)
	for k, v := range s.cheers {
		c.cheers[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	for k := range s.likes {
		c.likes[k] = struct{}{}
	}
	for k, v := range s.orders {
		v.Items = append([]shop.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	return c
}

// Store holds the shared state behind the per-domain adapters.
type Store struct {
	mu         sync.Mutex
	st         *state
	insertFail error
}

func New() *Store {
	return &Store{st: newState()}
}

// Ledger returns the ledger.Store view.
func (s *Store) Ledger() ledger.Store { return &ledgerStore{s} }

// Cheers returns the cheer.Store view.
func (s *Store) Cheers() cheer.Store { return &cheerStore{s} }

// Shop returns the shop.Store view.
func (s *Store) Shop() shop.Store { return &shopStore{s} }

// FailTransactionInserts makes every subsequent ledger insert fail with err.
// Pass nil to restore normal behaviour.
func (s *Store) FailTransactionInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertFail = err
}

// Balance returns a copy of the stored balance.
func (s *Store) Balance(accountID string) (ledger.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.balances[accountID]
	return b, ok
}

// Balances returns copies of every stored balance.
func (s *Store) Balances() []ledger.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Balance, 0, len(s.st.balances))
	for _, b := range s.st.balances {
		out = append(out, b)
	}
	return out
}

// Transactions returns every ledger entry in append order.
func (s *Store) Transactions() []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Transaction, 0, len(s.st.txns))
	for _, t := range s.st.txns {
		out = append(out, *t)
	}
	return out
}

// CheerCount returns the number of stored cheers.
func (s *Store) CheerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.cheers)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{st: work, insertFail: s.insertFail}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}
