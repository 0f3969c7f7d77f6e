package admin

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionPointsGrant        = "points.grant"
	ActionPointsDeduct       = "points.deduct"
	ActionOrderApprove       = "order.approve"
	ActionOrderComplete      = "order.complete"
	ActionOrderCancel        = "order.cancel"
	ActionOrderDelete        = "order.delete"
	ActionLeaderboardRefresh = "leaderboard.refresh"
	ActionQuotaReset         = "quota.reset"
)

const (
	TargetAccount     = "account"
	TargetOrder       = "order"
	TargetLeaderboard = "leaderboard"
	TargetQuota       = "quota"
)

// AuditLog is a record of one administrative action.
type AuditLog struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ActorAccount string          `db:"actor_account" json:"actor_account"`
	Action       string          `db:"action" json:"action"`
	TargetType   string          `db:"target_type" json:"target_type"`
	TargetID     string          `db:"target_id" json:"target_id"`
	Details      json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
