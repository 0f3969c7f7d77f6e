package admin

import (
	"github.com/cheers/cheers-api/internal/domain/ledger"
)

// AdjustPointsRequest is the body of a manual grant or deduction.
type AdjustPointsRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0,lte=1000000"`
	Reason string `json:"reason" validate:"required,notblank,min=3,max=500"`
}

// AdjustPointsResponse reports the balance after an adjustment.
type AdjustPointsResponse struct {
	Balance     ledger.BalanceResponse `json:"balance"`
	Transaction *ledger.Transaction    `json:"transaction"`
}

// CancelOrderRequest is the body of an administrative cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
