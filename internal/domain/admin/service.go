package admin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/domain/leaderboard"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
)

const auditTimeout = 5 * time.Second

// Service runs administrative operations and records each one to the audit sink.
type Service struct {
	ledger      *ledger.Service
	shop        *shop.Service
	leaderboard *leaderboard.Service
	audit       AuditSink
}

func NewService(ledgerSvc *ledger.Service, shopSvc *shop.Service, lb *leaderboard.Service, audit AuditSink) *Service {
	if audit == nil {
		audit = LogSink{}
	}
	return &Service{ledger: ledgerSvc, shop: shopSvc, leaderboard: lb, audit: audit}
}

// record emits an audit entry in the background. A failed emission is logged
// and never fails the action it describes.
func (s *Service) record(actor, action, targetType, targetID string, details map[string]interface{}) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	entry := AuditLog{
		ID:           uuid.New(),
		ActorAccount: actor,
		Action:       action,
		TargetType:   targetType,
		TargetID:     targetID,
		Details:      raw,
		CreatedAt:    s.ledger.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := s.audit.LogAdminAction(ctx, entry); err != nil {
			log.Error().Err(err).Str("action", action).Str("target_id", targetID).Msg("Failed to record admin action")
		}
	}()
}

// GrantPoints credits account outside the peer economy.
func (s *Service) GrantPoints(ctx context.Context, actor, account string, amount int64, reason string) (*ledger.Balance, *ledger.Transaction, error) {
	b, txn, err := s.ledger.Grant(ctx, ledger.Adjustment{AccountID: account, ActorAccount: actor, Amount: amount, Reason: reason})
	if err != nil {
		return nil, nil, err
	}
	s.record(actor, ActionPointsGrant, TargetAccount, account, map[string]interface{}{
		"amount": amount, "reason": reason, "transaction_id": txn.ID,
	})
	return b, txn, nil
}

// DeductPoints debits account. Fails rather than taking the balance negative.
func (s *Service) DeductPoints(ctx context.Context, actor, account string, amount int64, reason string) (*ledger.Balance, *ledger.Transaction, error) {
	b, txn, err := s.ledger.Deduct(ctx, ledger.Adjustment{AccountID: account, ActorAccount: actor, Amount: amount, Reason: reason})
	if err != nil {
		return nil, nil, err
	}
	s.record(actor, ActionPointsDeduct, TargetAccount, account, map[string]interface{}{
		"amount": amount, "reason": reason, "transaction_id": txn.ID,
	})
	return b, txn, nil
}

func (s *Service) AccountBalance(ctx context.Context, account string) (*ledger.Balance, error) {
	return s.ledger.GetBalance(ctx, account)
}

func (s *Service) ListOrders(ctx context.Context, status shop.OrderStatus, limit, offset int) ([]*shop.Order, error) {
	return s.shop.ListOrdersByStatus(ctx, status, limit, offset)
}

func (s *Service) ApproveOrder(ctx context.Context, actor string, id uuid.UUID) (*shop.Order, error) {
	o, err := s.shop.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(actor, ActionOrderApprove, TargetOrder, id.String(), map[string]interface{}{"buyer_account": o.BuyerAccount})
	return o, nil
}

func (s *Service) CompleteOrder(ctx context.Context, actor string, id uuid.UUID) (*shop.Order, error) {
	o, err := s.shop.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(actor, ActionOrderComplete, TargetOrder, id.String(), map[string]interface{}{"buyer_account": o.BuyerAccount})
	return o, nil
}

func (s *Service) CancelOrder(ctx context.Context, actor string, id uuid.UUID, reason string) (*shop.Order, error) {
	o, err := s.shop.Cancel(ctx, id, shop.Actor{AccountID: actor, Admin: true}, reason)
	if err != nil {
		return nil, err
	}
	s.record(actor, ActionOrderCancel, TargetOrder, id.String(), map[string]interface{}{
		"buyer_account": o.BuyerAccount, "refunded": o.TotalCost, "reason": reason,
	})
	return o, nil
}

func (s *Service) DeleteOrder(ctx context.Context, actor string, id uuid.UUID) error {
	if err := s.shop.Delete(ctx, id); err != nil {
		return err
	}
	s.record(actor, ActionOrderDelete, TargetOrder, id.String(), nil)
	return nil
}

func (s *Service) RefreshLeaderboard(ctx context.Context, actor string, window ledger.Window) (*leaderboard.Board, error) {
	b, err := s.leaderboard.RefreshCache(ctx, window)
	if err != nil {
		return nil, err
	}
	s.record(actor, ActionLeaderboardRefresh, TargetLeaderboard, string(window), map[string]interface{}{
		"entries": len(b.Entries), "computed_at": b.ComputedAt,
	})
	return b, nil
}

// ResetQuotas runs the monthly quota reset on demand.
func (s *Service) ResetQuotas(ctx context.Context, actor string) (*ledger.ResetReport, error) {
	report, err := s.ledger.ResetAllQuotas(ctx)
	if err != nil {
		return report, err
	}
	s.record(actor, ActionQuotaReset, TargetQuota, string(report.Period), map[string]interface{}{
		"scanned": report.Scanned, "reset": report.Reset, "skipped": report.Skipped, "failed": report.Failed,
	})
	return report, nil
}
