package shop

import "errors"

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidOrderTransition = errors.New("invalid order status transition")
	ErrOrderNotTerminal       = errors.New("only completed or cancelled orders can be deleted")
	ErrEmptyCart              = errors.New("no items to check out")
	ErrInvalidQuantity        = errors.New("quantity must be between 1 and 99")
	ErrProductUnavailable     = errors.New("product is unavailable")
	ErrCartItemNotFound       = errors.New("cart item not found")
	ErrForbidden              = errors.New("not allowed to act on this order")
	ErrTotalOverflow          = errors.New("order total is too large")
	ErrInvalidStatus          = errors.New("invalid order status")
)
