package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/shop"
)

type shopStore struct {
	s *Store
}

func (sh *shopStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx shop.Tx) error) error {
	return sh.s.withTx(ctx, func(tx *memTx) error { return fn(ctx, tx) })
}

func copyOrder(o shop.Order) *shop.Order {
	o.Items = append([]shop.OrderItem(nil), o.Items...)
	return &o
}

func (sh *shopStore) GetOrder(_ context.Context, id uuid.UUID) (*shop.Order, error) {
	var out *shop.Order
	sh.s.read(func(st *state) {
		if o, ok := st.orders[id]; ok {
			out = copyOrder(o)
		}
	})
	if out == nil {
		return nil, shop.ErrOrderNotFound
	}
	return out, nil
}

func (sh *shopStore) ListOrders(_ context.Context, q shop.OrderQuery) ([]*shop.Order, error) {
	q = q.Normalize()

	var matched []*shop.Order
	sh.s.read(func(st *state) {
		for _, o := range st.orders {
			if q.BuyerAccount != "" && o.BuyerAccount != q.BuyerAccount {
				continue
			}
			if q.Status != "" && o.Status != q.Status {
				continue
			}
			matched = append(matched, copyOrder(o))
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if q.Offset >= len(matched) {
		return []*shop.Order{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], nil
}

func (sh *shopStore) UpsertCartItem(_ context.Context, item *shop.CartItem) (*shop.CartItem, error) {
	var out shop.CartItem
	err := sh.s.write(func(st *state) error {
		for id, existing := range st.cart {
			if existing.AccountID == item.AccountID && existing.Key() == item.Key() {
				existing.Quantity += item.Quantity
				if existing.Quantity > 99 {
					return shop.ErrInvalidQuantity
				}
				existing.UpdatedAt = item.UpdatedAt
				st.cart[id] = existing
				out = existing
				return nil
			}
		}
		st.cart[item.ID] = *item
		out = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (sh *shopStore) ListCart(_ context.Context, accountID string) ([]*shop.CartItem, error) {
	var items []*shop.CartItem
	sh.s.read(func(st *state) {
		for _, item := range st.cart {
			if item.AccountID == accountID {
				item := item
				items = append(items, &item)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if items == nil {
		items = []*shop.CartItem{}
	}
	return items, nil
}

func (sh *shopStore) RemoveCartItem(_ context.Context, accountID string, id uuid.UUID) error {
	return sh.s.write(func(st *state) error {
		item, ok := st.cart[id]
		if !ok || item.AccountID != accountID {
			return shop.ErrCartItemNotFound
		}
		delete(st.cart, id)
		return nil
	})
}
