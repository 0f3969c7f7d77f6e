package shop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/logger"
	"github.com/cheers/cheers-api/internal/pkg/metrics"
)

// Service is the checkout and order engine. Points are debited at checkout
// and refunded if a pending order is cancelled.
type Service struct {
	store   Store
	catalog Catalog
	ledger  *ledger.Service
}

func NewService(store Store, catalog Catalog, ledgerSvc *ledger.Service) *Service {
	return &Service{store: store, catalog: catalog, ledger: ledgerSvc}
}

// mergeLines folds duplicate products together, keeping first-seen order.
func mergeLines(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	merged := make([]LineItem, 0, len(items))
	index := make(map[ProductKey]int, len(items))
	for _, it := range items {
		it.ProductRef = strings.TrimSpace(it.ProductRef)
		it.VariationRef = strings.TrimSpace(it.VariationRef)
		if it.ProductRef == "" {
			return nil, ErrProductUnavailable
		}
		if it.Quantity < 1 || it.Quantity > maxLineQuantity {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[it.Key()]; ok {
			merged[i].Quantity += it.Quantity
			if merged[i].Quantity > maxLineQuantity {
				return nil, ErrInvalidQuantity
			}
			continue
		}
		index[it.Key()] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// price snapshots catalog prices into order items and totals them.
func (s *Service) price(ctx context.Context, lines []LineItem) ([]OrderItem, int64, error) {
	keys := make([]ProductKey, 0, len(lines))
	for _, l := range lines {
		keys = append(keys, l.Key())
	}
	products, err := s.catalog.Lookup(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog lookup: %w", err)
	}

	items := make([]OrderItem, 0, len(lines))
	var total int64
	for i, l := range lines {
		p, ok := products[l.Key()]
		if !ok || !p.Active || p.UnitCost <= 0 {
			return nil, 0, fmt.Errorf("%w: %s", ErrProductUnavailable, l.ProductRef)
		}
		qty := int64(l.Quantity)
		if p.UnitCost > (math.MaxInt64-total)/qty {
			return nil, 0, ErrTotalOverflow
		}
		total += p.UnitCost * qty
		items = append(items, OrderItem{
			ID:           uuid.New(),
			Position:     i,
			ProductRef:   l.ProductRef,
			VariationRef: l.VariationRef,
			ProductName:  p.Name,
			UnitCost:     p.UnitCost,
			Quantity:     l.Quantity,
		})
	}
	return items, total, nil
}

// Checkout turns items into a pending order, debiting the buyer's points and
// removing the bought lines from the cart in the same unit.
func (s *Service) Checkout(ctx context.Context, buyer string, items []LineItem) (*Order, error) {
	order, err := s.checkout(ctx, buyer, items)
	switch {
	case err == nil:
		metrics.Checkouts.WithLabelValues("ok").Inc()
	case errors.Is(err, ledger.ErrInsufficientBalance):
		metrics.Checkouts.WithLabelValues("insufficient_balance").Inc()
	default:
		metrics.Checkouts.WithLabelValues("error").Inc()
	}
	return order, err
}

func (s *Service) checkout(ctx context.Context, buyer string, items []LineItem) (*Order, error) {
	if err := ledger.ValidateAccount(buyer); err != nil {
		return nil, err
	}
	lines, err := mergeLines(items)
	if err != nil {
		return nil, err
	}
	orderItems, total, err := s.price(ctx, lines)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInternal, err)
	}
	now := s.ledger.Now()
	for i := range orderItems {
		orderItems[i].OrderID = id
	}
	order := &Order{
		ID:           id,
		BuyerAccount: buyer,
		TotalCost:    total,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Items:        orderItems,
	}

	keys := make([]ProductKey, 0, len(lines))
	for _, l := range lines {
		keys = append(keys, l.Key())
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := s.ledger.LockBalances(ctx, tx, buyer)
		if err != nil {
			return err
		}
		if err := s.ledger.DebitPoints(ctx, tx, locked[buyer], total); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := s.ledger.Append(ctx, tx, &ledger.Transaction{
			FromAccount: &buyer,
			ToAccount:   buyer,
			Kind:        ledger.KindPurchase,
			Amount:      total,
			Description: fmt.Sprintf("Order %s", order.ID),
			Metadata:    ledger.Metadata{OrderID: &order.ID},
		}); err != nil {
			return err
		}
		return tx.DeleteCartLines(ctx, buyer, keys)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("order_id", order.ID.String()).
		Str("buyer_account", buyer).
		Int64("total_cost", total).
		Int("items", len(order.Items)).
		Msg("Order placed")
	return order, nil
}

// CheckoutCart checks out everything in the account's cart.
func (s *Service) CheckoutCart(ctx context.Context, buyer string) (*Order, error) {
	cart, err := s.store.ListCart(ctx, buyer)
	if err != nil {
		return nil, err
	}
	items := make([]LineItem, 0, len(cart))
	for _, c := range cart {
		items = append(items, LineItem{ProductRef: c.ProductRef, VariationRef: c.VariationRef, Quantity: c.Quantity})
	}
	return s.Checkout(ctx, buyer, items)
}

// transition moves the order to next under lock. apply runs before the
// update for side effects such as the refund.
func (s *Service) transition(ctx context.Context, id uuid.UUID, next OrderStatus, authorize func(*Order) error, apply func(ctx context.Context, tx Tx, o *Order) error) (*Order, error) {
	var out *Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(o); err != nil {
				return err
			}
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidOrderTransition, o.Status, next)
		}
		if apply != nil {
			if err := apply(ctx, tx, o); err != nil {
				return err
			}
		}

		now := s.ledger.Now()
		o.Status = next
		o.UpdatedAt = now
		switch next {
		case StatusProcessing:
			o.ProcessedAt = &now
		case StatusCompleted:
			o.CompletedAt = &now
		case StatusCancelled:
			o.CancelledAt = &now
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("order_id", out.ID.String()).
		Str("status", string(out.Status)).
		Msg("Order status changed")
	return out, nil
}

// Approve moves a pending order to processing. Points were already reserved at checkout.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusProcessing, nil, nil)
}

// Complete moves a processing order to completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusCompleted, nil, nil)
}

// Cancel cancels a pending order and refunds its total. The buyer may cancel
// their own order; admins may cancel any.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Order, error) {
	reason = strings.TrimSpace(reason)

	authorize := func(o *Order) error {
		if !actor.Admin && o.BuyerAccount != actor.AccountID {
			return ErrOrderNotFound
		}
		return nil
	}
	refund := func(ctx context.Context, tx Tx, o *Order) error {
		locked, err := s.ledger.LockBalances(ctx, tx, o.BuyerAccount)
		if err != nil {
			return err
		}
		if err := s.ledger.CreditPoints(ctx, tx, locked[o.BuyerAccount], o.TotalCost); err != nil {
			return err
		}

		description := fmt.Sprintf("Refund for order %s", o.ID)
		if reason != "" {
			description += ": " + reason
			o.Notes = &reason
		}
		meta := ledger.Metadata{OrderID: &o.ID}
		if actor.AccountID != o.BuyerAccount {
			meta.ActorAccount = &actor.AccountID
		}
		return s.ledger.Append(ctx, tx, &ledger.Transaction{
			ToAccount:   o.BuyerAccount,
			Kind:        ledger.KindRefund,
			Amount:      o.TotalCost,
			Description: description,
			Metadata:    meta,
		})
	}
	return s.transition(ctx, id, StatusCancelled, authorize, refund)
}

// Delete purges a completed or cancelled order. Its ledger entries stay.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.Terminal() {
			return ErrOrderNotTerminal
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Str("order_id", id.String()).Msg("Order deleted")
	return nil
}

// GetOrder returns an order visible to actor. Other buyers' orders read as not found.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID, actor Actor) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && o.BuyerAccount != actor.AccountID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ListOrders returns the buyer's order history, newest first.
func (s *Service) ListOrders(ctx context.Context, buyer string, limit, offset int) ([]*Order, error) {
	if err := ledger.ValidateAccount(buyer); err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, OrderQuery{BuyerAccount: buyer, Limit: limit, Offset: offset}.Normalize())
}

// ListOrdersByStatus lists every buyer's orders, optionally in one status.
func (s *Service) ListOrdersByStatus(ctx context.Context, status OrderStatus, limit, offset int) ([]*Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.ListOrders(ctx, OrderQuery{Status: status, Limit: limit, Offset: offset}.Normalize())
}

// AddToCart adds quantity of a product to the account's cart.
func (s *Service) AddToCart(ctx context.Context, account string, item LineItem) (*CartItem, error) {
	if err := ledger.ValidateAccount(account); err != nil {
		return nil, err
	}
	lines, err := mergeLines([]LineItem{item})
	if err != nil {
		return nil, err
	}
	if _, _, err := s.price(ctx, lines); err != nil {
		return nil, err
	}

	now := s.ledger.Now()
	return s.store.UpsertCartItem(ctx, &CartItem{
		ID:           uuid.New(),
		AccountID:    account,
		ProductRef:   lines[0].ProductRef,
		VariationRef: lines[0].VariationRef,
		Quantity:     lines[0].Quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *Service) ListCart(ctx context.Context, account string) ([]*CartItem, error) {
	return s.store.ListCart(ctx, account)
}

func (s *Service) RemoveFromCart(ctx context.Context, account string, id uuid.UUID) error {
	return s.store.RemoveCartItem(ctx, account, id)
}
