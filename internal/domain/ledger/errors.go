package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount: must be greater than 0")
	ErrInvalidAccount      = errors.New("invalid account id")
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidReason       = errors.New("a reason is required")
	ErrQuotaExceeded       = errors.New("monthly quota exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLedgerWriteFailure  = errors.New("ledger write failure")
	ErrInvariantViolation  = errors.New("balance invariant violated")
	ErrInternal            = errors.New("internal error")
)

// QuotaExceededError carries the remaining quota so callers can report it.
type QuotaExceededError struct {
	Requested int64
	Remaining int64
	Allotment int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: %d of %d remaining this month", e.Remaining, e.Allotment)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// InsufficientBalanceError carries the spendable amount at the time of the check.
type InsufficientBalanceError struct {
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %d requested, %d available", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
