package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/pkg/logger"
	"github.com/cheers/cheers-api/internal/pkg/metrics"
)

const resetBatchSize = 500

// Service is the balance and quota manager plus the append-only ledger.
// Every mutation goes through a Tx so the balance change and its ledger
// entries commit or roll back together.
type Service struct {
	store     Store
	allotment int64
	now       func() time.Time
}

func NewService(store Store, allotment int64, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, allotment: allotment, now: now}
}

// Now is the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

func (s *Service) CurrentPeriod() Period {
	return PeriodOf(s.Now())
}

func (s *Service) seed(accountID string) *Balance {
	now := s.Now()
	return NewBalance(accountID, s.allotment, PeriodOf(now), now)
}

// EnsureBalance returns the balance for accountID, creating a zero balance on first sight.
func (s *Service) EnsureBalance(ctx context.Context, accountID string) (*Balance, error) {
	if err := ValidateAccount(accountID); err != nil {
		return nil, err
	}
	b, err := s.store.EnsureBalance(ctx, s.seed(accountID))
	if err != nil {
		return nil, fmt.Errorf("%w: ensure balance: %v", ErrInternal, err)
	}
	return b, nil
}

// GetBalance reads the account balance without writing. A quota last reset in
// an earlier period is reported as unused for the current period; the stored
// row is rolled by the next mutation or by the monthly reset.
func (s *Service) GetBalance(ctx context.Context, accountID string) (*Balance, error) {
	if err := ValidateAccount(accountID); err != nil {
		return nil, err
	}
	b, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get balance: %v", ErrInternal, err)
	}
	if current := s.CurrentPeriod(); b.LastResetPeriod.Before(current) {
		b.QuotaUsed = 0
		b.LastResetPeriod = current
	}
	return b, nil
}

// CheckAndRollQuota resets the quota if the balance was last reset in an
// earlier period. Safe to call any number of times.
func (s *Service) CheckAndRollQuota(ctx context.Context, accountID string) (*Balance, error) {
	b, err := s.EnsureBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !b.LastResetPeriod.Before(s.CurrentPeriod()) {
		return b, nil
	}

	var rolled *Balance
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := s.LockBalances(ctx, tx, accountID)
		if err != nil {
			return err
		}
		rolled = locked[accountID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rolled, nil
}

// QuotaRemaining returns how many points the account can still give this period.
func (s *Service) QuotaRemaining(ctx context.Context, accountID string) (int64, error) {
	b, err := s.CheckAndRollQuota(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return b.QuotaRemaining(), nil
}

// CanGive is a read-only pre-check. The authoritative check is ConsumeQuota under lock.
func (s *Service) CanGive(ctx context.Context, accountID string, amount int64) (bool, *Balance, error) {
	if amount <= 0 {
		return false, nil, ErrInvalidAmount
	}
	b, err := s.CheckAndRollQuota(ctx, accountID)
	if err != nil {
		return false, nil, err
	}
	return b.QuotaUsed+amount <= b.QuotaAllotment, b, nil
}

// LockBalances locks the balances of accountIDs in ascending id order,
// creating missing ones and rolling stale quotas.
func (s *Service) LockBalances(ctx context.Context, tx Tx, accountIDs ...string) (map[string]*Balance, error) {
	ids := make([]string, 0, len(accountIDs))
	seen := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		if err := ValidateAccount(id); err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	locked := make(map[string]*Balance, len(ids))
	for _, id := range ids {
		b, err := tx.LockBalance(ctx, s.seed(id))
		if err != nil {
			return nil, fmt.Errorf("lock balance %s: %w", id, err)
		}
		if _, err := s.rollQuotaTx(ctx, tx, b); err != nil {
			return nil, err
		}
		locked[id] = b
	}
	return locked, nil
}

func (s *Service) rollQuotaTx(ctx context.Context, tx Tx, b *Balance) (bool, error) {
	current := s.CurrentPeriod()
	if !b.LastResetPeriod.Before(current) {
		return false, nil
	}

	b.QuotaUsed = 0
	b.LastResetPeriod = current
	if err := s.save(ctx, tx, b); err != nil {
		return false, err
	}

	if b.QuotaAllotment > 0 {
		err := s.Append(ctx, tx, &Transaction{
			ToAccount:   b.AccountID,
			Kind:        KindMonthlyAllowance,
			Amount:      b.QuotaAllotment,
			Description: fmt.Sprintf("Monthly giving allowance for %s", current),
			Metadata:    Metadata{Period: ptr(current)},
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// ConsumeQuota spends amount of b's giving quota. b must be locked in tx.
func (s *Service) ConsumeQuota(ctx context.Context, tx Tx, b *Balance, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.QuotaUsed+amount > b.QuotaAllotment {
		return &QuotaExceededError{Requested: amount, Remaining: b.QuotaRemaining(), Allotment: b.QuotaAllotment}
	}
	b.QuotaUsed += amount
	return s.save(ctx, tx, b)
}

// CreditPoints adds spendable points to b. b must be locked in tx.
func (s *Service) CreditPoints(ctx context.Context, tx Tx, b *Balance, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.AvailablePoints += amount
	b.TotalEarned += amount
	return s.save(ctx, tx, b)
}

// DebitPoints removes spendable points from b. b must be locked in tx.
func (s *Service) DebitPoints(ctx context.Context, tx Tx, b *Balance, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.AvailablePoints < amount {
		return &InsufficientBalanceError{Requested: amount, Available: b.AvailablePoints}
	}
	b.AvailablePoints -= amount
	b.TotalSpent += amount
	return s.save(ctx, tx, b)
}

func (s *Service) save(ctx context.Context, tx Tx, b *Balance) error {
	if err := b.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: account %s", err, b.AccountID)
	}
	b.UpdatedAt = s.Now()
	return tx.UpdateBalance(ctx, b)
}

// Append writes one ledger entry in tx, filling id, correlation id and timestamp.
// A failed write aborts the enclosing unit with ErrLedgerWriteFailure.
func (s *Service) Append(ctx context.Context, tx Tx, t *Transaction) error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerWriteFailure, err)
		}
		t.ID = id
	}
	if t.Metadata.CorrelationID == uuid.Nil {
		t.Metadata.CorrelationID = t.ID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.Now()
	}

	if err := tx.InsertTransaction(ctx, t); err != nil {
		metrics.LedgerWriteFailures.Inc()
		logger.FromContext(ctx).Error().
			Err(err).
			Str("kind", string(t.Kind)).
			Str("to_account", t.ToAccount).
			Int64("amount", t.Amount).
			Str("correlation_id", t.Metadata.CorrelationID.String()).
			Msg("Ledger write failed")
		return fmt.Errorf("%w: %w", ErrLedgerWriteFailure, err)
	}
	return nil
}

// Transfer describes a point movement recorded as a given/received pair.
type Transfer struct {
	From        string
	To          string
	Amount      int64
	Message     string
	Description string
	CheerID     *uuid.UUID
}

// AppendTransferPair writes the given and received entries of a transfer
// under one correlation id.
func (s *Service) AppendTransferPair(ctx context.Context, tx Tx, tr Transfer) (given, received *Transaction, err error) {
	correlationID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrLedgerWriteFailure, err)
	}
	meta := Metadata{CorrelationID: correlationID, CheerID: tr.CheerID}

	given = &Transaction{
		FromAccount: ptr(tr.From),
		ToAccount:   tr.To,
		Kind:        KindGiven,
		Amount:      tr.Amount,
		Description: tr.Description,
		Message:     tr.Message,
		Metadata:    meta,
	}
	received = &Transaction{
		FromAccount: ptr(tr.From),
		ToAccount:   tr.To,
		Kind:        KindReceived,
		Amount:      tr.Amount,
		Description: tr.Description,
		Message:     tr.Message,
		Metadata:    meta,
	}

	if err := s.Append(ctx, tx, given); err != nil {
		return nil, nil, err
	}
	if err := s.Append(ctx, tx, received); err != nil {
		return nil, nil, err
	}
	return given, received, nil
}

// Adjustment is an administrator's manual change to an account's points.
type Adjustment struct {
	AccountID    string
	ActorAccount string
	Amount       int64
	Reason       string
}

func (a Adjustment) validate() error {
	if err := ValidateAccount(a.AccountID); err != nil {
		return err
	}
	if err := ValidateAccount(a.ActorAccount); err != nil {
		return err
	}
	if a.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(a.Reason) == "" {
		return ErrInvalidReason
	}
	return nil
}

// Grant credits points outside the peer economy and records an admin_grant entry.
func (s *Service) Grant(ctx context.Context, adj Adjustment) (*Balance, *Transaction, error) {
	return s.adjust(ctx, adj, KindAdminGrant)
}

// Deduct debits points and records an admin_deduct entry. Fails with
// ErrInsufficientBalance rather than going negative.
func (s *Service) Deduct(ctx context.Context, adj Adjustment) (*Balance, *Transaction, error) {
	return s.adjust(ctx, adj, KindAdminDeduct)
}

func (s *Service) adjust(ctx context.Context, adj Adjustment, kind Kind) (*Balance, *Transaction, error) {
	if err := adj.validate(); err != nil {
		return nil, nil, err
	}

	var (
		result *Balance
		entry  *Transaction
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := s.LockBalances(ctx, tx, adj.AccountID)
		if err != nil {
			return err
		}
		b := locked[adj.AccountID]

		entry = &Transaction{
			ToAccount:   adj.AccountID,
			Kind:        kind,
			Amount:      adj.Amount,
			Description: strings.TrimSpace(adj.Reason),
			Metadata:    Metadata{ActorAccount: ptr(adj.ActorAccount)},
		}
		if kind == KindAdminGrant {
			err = s.CreditPoints(ctx, tx, b, adj.Amount)
		} else {
			entry.FromAccount = ptr(adj.AccountID)
			err = s.DebitPoints(ctx, tx, b, adj.Amount)
		}
		if err != nil {
			return err
		}
		if err := s.Append(ctx, tx, entry); err != nil {
			return err
		}
		result = b.clone()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, entry, nil
}

// History returns a page of the account's ledger, newest first.
func (s *Service) History(ctx context.Context, accountID string, filter HistoryFilter) ([]*Transaction, error) {
	if err := ValidateAccount(accountID); err != nil {
		return nil, err
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	filter = filter.Normalize()
	if !filter.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", filter.Role)
	}

	txns, err := s.store.ListTransactions(ctx, accountID, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ErrInternal, err)
	}
	return txns, nil
}

// Aggregate sums entries of kind per account in [since, until), highest first.
func (s *Service) Aggregate(ctx context.Context, kind Kind, since, until time.Time) ([]AccountTotal, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	totals, err := s.store.SumByAccount(ctx, kind, since, until)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate: %v", ErrInternal, err)
	}
	return totals, nil
}

// ResetQuota rolls one account into the current period in its own unit.
// Reports false if the account was already current.
func (s *Service) ResetQuota(ctx context.Context, accountID string) (bool, error) {
	var rolled bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBalance(ctx, s.seed(accountID))
		if err != nil {
			return err
		}
		rolled, err = s.rollQuotaTx(ctx, tx, b)
		return err
	})
	return rolled, err
}

// ResetReport summarises one ResetAllQuotas run.
type ResetReport struct {
	Period  Period `json:"period"`
	Scanned int    `json:"scanned"`
	Reset   int    `json:"reset"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// ResetAllQuotas rolls every account whose quota belongs to an earlier period.
// Each account is its own unit; one failure does not stop the run.
func (s *Service) ResetAllQuotas(ctx context.Context) (*ResetReport, error) {
	report := &ResetReport{Period: s.CurrentPeriod()}
	l := logger.FromContext(ctx)

	after := ""
	for {
		ids, err := s.store.ListAccountsDueForReset(ctx, report.Period, after, resetBatchSize)
		if err != nil {
			return report, fmt.Errorf("%w: list accounts due for reset: %v", ErrInternal, err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++

			rolled, err := s.ResetQuota(ctx, id)
			switch {
			case err != nil:
				report.Failed++
				metrics.QuotaResets.WithLabelValues("failed").Inc()
				l.Error().Err(err).Str("account_id", id).Msg("Quota reset failed")
			case rolled:
				report.Reset++
				metrics.QuotaResets.WithLabelValues("reset").Inc()
			default:
				report.Skipped++
			}
		}
		after = ids[len(ids)-1]
	}

	l.Info().
		Str("period", string(report.Period)).
		Int("scanned", report.Scanned).
		Int("reset", report.Reset).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Quota reset run finished")
	return report, nil
}
