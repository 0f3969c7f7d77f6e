package shop

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ProductKey identifies a catalog product, optionally narrowed to a variation.
type ProductKey struct {
	ProductRef   string `json:"product_ref"`
	VariationRef string `json:"variation_ref,omitempty"`
}

// Product is a priced catalog entry.
type Product struct {
	ProductKey
	Name     string `json:"name"`
	UnitCost int64  `json:"unit_cost"`
	Active   bool   `json:"active"`
}

// Order is a redemption of points for catalog items.
type Order struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	BuyerAccount string      `db:"buyer_account" json:"buyer_account"`
	TotalCost    int64       `db:"total_cost" json:"total_cost"`
	Status       OrderStatus `db:"status" json:"status"`
	Notes        *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time  `db:"processed_at" json:"processed_at,omitempty"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt  *time.Time  `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Items        []OrderItem `db:"-" json:"items"`
}

// OrderItem is a priced line frozen at checkout time.
type OrderItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OrderID      uuid.UUID `db:"order_id" json:"order_id"`
	Position     int       `db:"position" json:"position"`
	ProductRef   string    `db:"product_ref" json:"product_ref"`
	VariationRef string    `db:"variation_ref" json:"variation_ref,omitempty"`
	ProductName  string    `db:"product_name" json:"product_name"`
	UnitCost     int64     `db:"unit_cost" json:"unit_cost"`
	Quantity     int       `db:"quantity" json:"quantity"`
}

// CartItem is a pending line in an account's cart.
type CartItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AccountID    string    `db:"account_id" json:"account_id"`
	ProductRef   string    `db:"product_ref" json:"product_ref"`
	VariationRef string    `db:"variation_ref" json:"variation_ref,omitempty"`
	Quantity     int       `db:"quantity" json:"quantity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (c *CartItem) Key() ProductKey {
	return ProductKey{ProductRef: c.ProductRef, VariationRef: c.VariationRef}
}

// LineItem is a requested product and quantity.
type LineItem struct {
	ProductRef   string `json:"product_ref" validate:"required,max=128"`
	VariationRef string `json:"variation_ref" validate:"max=128"`
	Quantity     int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

func (l LineItem) Key() ProductKey {
	return ProductKey{ProductRef: l.ProductRef, VariationRef: l.VariationRef}
}

// OrderQuery selects a page of orders. Empty fields do not filter.
type OrderQuery struct {
	BuyerAccount string
	Status       OrderStatus
	Limit        int
	Offset       int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxLineQuantity  = 99
)

func (q OrderQuery) Normalize() OrderQuery {
	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Actor is the caller of an order operation.
type Actor struct {
	AccountID string
	Admin     bool
}
