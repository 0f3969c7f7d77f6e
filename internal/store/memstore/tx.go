package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/cheer"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
	"github.com/cheers/cheers-api/internal/pkg/database"
)

var errDuplicateAllowance = errors.New("duplicate monthly allowance for period")

// memTx implements ledger.Tx, cheer.Tx and shop.Tx over a working copy.
type memTx struct {
	st         *state
	insertFail error
}

func (t *memTx) LockBalance(_ context.Context, seed *ledger.Balance) (*ledger.Balance, error) {
	b, ok := t.st.balances[seed.AccountID]
	if !ok {
		b = *seed
		t.st.balances[seed.AccountID] = b
	}
	return &b, nil
}

func (t *memTx) UpdateBalance(_ context.Context, b *ledger.Balance) error {
	current, ok := t.st.balances[b.AccountID]
	if !ok || current.Version != b.Version {
		return database.ErrStaleWrite
	}
	if err := b.CheckInvariants(); err != nil {
		return err
	}
	b.Version++
	t.st.balances[b.AccountID] = *b
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn *ledger.Transaction) error {
	if t.insertFail != nil {
		return t.insertFail
	}
	if txn.Kind == ledger.KindMonthlyAllowance && txn.Metadata.Period != nil {
		for _, existing := range t.st.txns {
			if existing.Kind == ledger.KindMonthlyAllowance &&
				existing.ToAccount == txn.ToAccount &&
				existing.Metadata.Period != nil && *existing.Metadata.Period == *txn.Metadata.Period {
				return errDuplicateAllowance
			}
		}
	}
	c := *txn
	t.st.txns = append(t.st.txns, &c)
	return nil
}

func (t *memTx) InsertCheer(_ context.Context, c *cheer.Cheer) error {
	if _, ok := t.st.cheers[c.ID]; ok {
		return fmt.Errorf("cheer %s already exists", c.ID)
	}
	t.st.cheers[c.ID] = *c
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *shop.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	c := *o
	c.Items = append([]shop.OrderItem(nil), o.Items...)
	t.st.orders[o.ID] = c
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id uuid.UUID) (*shop.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, shop.ErrOrderNotFound
	}
	o.Items = append([]shop.OrderItem(nil), o.Items...)
	return &o, nil
}

func (t *memTx) UpdateOrder(_ context.Context, o *shop.Order) error {
	existing, ok := t.st.orders[o.ID]
	if !ok {
		return shop.ErrOrderNotFound
	}
	existing.Status = o.Status
	existing.Notes = o.Notes
	existing.UpdatedAt = o.UpdatedAt
	existing.ProcessedAt = o.ProcessedAt
	existing.CompletedAt = o.CompletedAt
	existing.CancelledAt = o.CancelledAt
	t.st.orders[o.ID] = existing
	return nil
}

func (t *memTx) DeleteOrder(_ context.Context, id uuid.UUID) error {
	if _, ok := t.st.orders[id]; !ok {
		return shop.ErrOrderNotFound
	}
	delete(t.st.orders, id)
	return nil
}

func (t *memTx) DeleteCartLines(_ context.Context, accountID string, keys []shop.ProductKey) error {
	wanted := make(map[shop.ProductKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	for id, item := range t.st.cart {
		if item.AccountID != accountID {
			continue
		}
		if _, ok := wanted[item.Key()]; ok {
			delete(t.st.cart, id)
		}
	}
	return nil
}

func sortTransactionsDesc(txns []*ledger.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID.String() > txns[j].ID.String()
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
}
