package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindGiven            Kind = "given"
	KindReceived         Kind = "received"
	KindPurchase         Kind = "purchase"
	KindRefund           Kind = "refund"
	KindAdminGrant       Kind = "admin_grant"
	KindAdminDeduct      Kind = "admin_deduct"
	KindMonthlyAllowance Kind = "monthly_allowance"
)

var kinds = map[Kind]struct{}{
	KindGiven:            {},
	KindReceived:         {},
	KindPurchase:         {},
	KindRefund:           {},
	KindAdminGrant:       {},
	KindAdminDeduct:      {},
	KindMonthlyAllowance: {},
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Role narrows a history query to the side of the entry the account is on.
type Role string

const (
	RoleAny      Role = "any"
	RoleGiver    Role = "giver"
	RoleReceiver Role = "receiver"
)

func (r Role) Valid() bool {
	return r == RoleAny || r == RoleGiver || r == RoleReceiver
}

// Balance is the per-account summary of points and monthly quota.
//
// available_points = total_earned - total_spent and
// 0 <= quota_used <= quota_allotment hold after every committed operation.
type Balance struct {
	AccountID       string    `db:"account_id" json:"account_id"`
	AvailablePoints int64     `db:"available_points" json:"available_points"`
	TotalEarned     int64     `db:"total_earned" json:"total_earned"`
	TotalSpent      int64     `db:"total_spent" json:"total_spent"`
	QuotaAllotment  int64     `db:"quota_allotment" json:"quota_allotment"`
	QuotaUsed       int64     `db:"quota_used" json:"quota_used"`
	LastResetPeriod Period    `db:"last_reset_period" json:"last_reset_period"`
	Version         int64     `db:"version" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// NewBalance returns the zero balance a first-seen account starts with.
func NewBalance(accountID string, allotment int64, period Period, now time.Time) *Balance {
	return &Balance{
		AccountID:       accountID,
		QuotaAllotment:  allotment,
		LastResetPeriod: period,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// QuotaRemaining is how many points the account may still give this period.
func (b *Balance) QuotaRemaining() int64 {
	if b.QuotaUsed >= b.QuotaAllotment {
		return 0
	}
	return b.QuotaAllotment - b.QuotaUsed
}

// CheckInvariants verifies the balance identities.
func (b *Balance) CheckInvariants() error {
	switch {
	case b.AvailablePoints < 0, b.TotalEarned < 0, b.TotalSpent < 0:
		return ErrInvariantViolation
	case b.AvailablePoints != b.TotalEarned-b.TotalSpent:
		return ErrInvariantViolation
	case b.QuotaUsed < 0 || b.QuotaUsed > b.QuotaAllotment:
		return ErrInvariantViolation
	}
	return nil
}

func (b *Balance) clone() *Balance {
	c := *b
	return &c
}

// Metadata links a ledger entry to the operation that produced it.
type Metadata struct {
	CorrelationID uuid.UUID  `json:"correlation_id"`
	CheerID       *uuid.UUID `json:"cheer_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Period        *Period    `json:"period,omitempty"`
	ActorAccount  *string    `json:"actor_account,omitempty"`
}

// Transaction is an immutable ledger entry.
//
// Party convention: transfers carry from=giver, to=receiver on both rows;
// purchase and admin_deduct carry from=to=account; refund, admin_grant and
// monthly_allowance have no from party.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	FromAccount *string   `json:"from_account,omitempty"`
	ToAccount   string    `json:"to_account"`
	Kind        Kind      `json:"kind"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Message     string    `json:"message,omitempty"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
}

func (t *Transaction) validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ValidateAccount(t.ToAccount); err != nil {
		return err
	}
	if t.FromAccount != nil {
		if err := ValidateAccount(*t.FromAccount); err != nil {
			return err
		}
	}
	return nil
}

// AccountTotal is one row of an Aggregate result.
type AccountTotal struct {
	AccountID string `db:"account_id" json:"account_id"`
	Total     int64  `db:"total" json:"total"`
}

// HistoryFilter selects a page of an account's ledger entries.
type HistoryFilter struct {
	Kind   Kind
	Role   Role
	Limit  int
	Offset int
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Normalize applies the default and maximum page sizes.
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Role == "" {
		f.Role = RoleAny
	}
	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Limit > maxHistoryLimit {
		f.Limit = maxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Owns reports whether t belongs to account's history. A given entry belongs
// to the giver; every other kind belongs to its to party.
func (t *Transaction) Owns(accountID string) bool {
	if t.Kind == KindGiven {
		return t.FromAccount != nil && *t.FromAccount == accountID
	}
	return t.ToAccount == accountID
}

// Matches reports whether t passes the kind and role parts of f for accountID.
func (f HistoryFilter) Matches(t *Transaction, accountID string) bool {
	if !t.Owns(accountID) {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	switch f.Role {
	case RoleGiver:
		return t.FromAccount != nil && *t.FromAccount == accountID
	case RoleReceiver:
		return t.ToAccount == accountID
	}
	return true
}

// ValidateAccount rejects blank or padded account ids.
func ValidateAccount(accountID string) error {
	if accountID == "" || strings.TrimSpace(accountID) != accountID || len(accountID) > 128 {
		return ErrInvalidAccount
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
