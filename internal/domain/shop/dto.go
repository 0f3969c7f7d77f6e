package shop

// CheckoutRequest is the body of POST /shop/checkout. Without items the whole cart is checked out.
type CheckoutRequest struct {
	Items []LineItem `json:"items" validate:"omitempty,max=50,dive"`
}

// CancelRequest is the body of an order cancellation.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
