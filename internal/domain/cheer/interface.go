package cheer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/ledger"
)

// Tx extends the ledger unit of work with cheer writes.
type Tx interface {
	ledger.Tx
	InsertCheer(ctx context.Context, c *Cheer) error
}

// Store is the persistence boundary of cheers and their social layer.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetCheer(ctx context.Context, id uuid.UUID, viewer string) (*View, error)
	ListCheers(ctx context.Context, q ListQuery) ([]*View, error)

	InsertComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	UpdateComment(ctx context.Context, c *Comment) error
	DeleteComment(ctx context.Context, id uuid.UUID) error
	ListComments(ctx context.Context, cheerID uuid.UUID, limit, offset int) ([]*Comment, error)

	// ToggleLike flips the like of accountID on cheerID and returns the resulting state.
	ToggleLike(ctx context.Context, cheerID uuid.UUID, accountID string, at time.Time) (*LikeResult, error)
}
