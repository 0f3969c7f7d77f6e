package admin

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// AuditSink records administrative actions.
type AuditSink interface {
	LogAdminAction(ctx context.Context, entry AuditLog) error
}

// LogSink writes audit entries to the application log.
type LogSink struct{}

func (LogSink) LogAdminAction(_ context.Context, entry AuditLog) error {
	details := entry.Details
	if len(details) == 0 {
		details = []byte("{}")
	}
	log.Info().
		Str("audit_id", entry.ID.String()).
		Str("actor_account", entry.ActorAccount).
		Str("action", entry.Action).
		Str("target_type", entry.TargetType).
		Str("target_id", entry.TargetID).
		RawJSON("details", details).
		Msg("Admin action")
	return nil
}

// AuditRepository persists audit entries to admin_audit_logs.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) LogAdminAction(ctx context.Context, entry AuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	details := entry.Details
	if len(details) == 0 {
		details = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_audit_logs (id, actor_account, action, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.ActorAccount, entry.Action, entry.TargetType, entry.TargetID, []byte(details), entry.CreatedAt)
	return err
}

// MultiSink fans an entry out to every sink.
type MultiSink []AuditSink

func (m MultiSink) LogAdminAction(ctx context.Context, entry AuditLog) error {
	var errs []error
	for _, s := range m {
		if err := s.LogAdminAction(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
