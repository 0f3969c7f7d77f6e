package cheer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const viewSelect = `
	SELECT c.id, c.from_account, c.to_account, c.points, c.message, c.created_at,
		(SELECT COUNT(*) FROM cheer_comments cc WHERE cc.cheer_id = c.id) AS comment_count,
		(SELECT COUNT(*) FROM cheer_likes cl WHERE cl.cheer_id = c.id) AS like_count,
		EXISTS (SELECT 1 FROM cheer_likes cl WHERE cl.cheer_id = c.id AND cl.account_id = $1) AS liked_by_me
	FROM cheers c`

const commentColumns = `id, cheer_id, author_account, text, created_at, updated_at`

// Repository is the Postgres-backed Store.
type Repository struct {
	runner *database.TxRunner
	db     database.Querier
}

func NewRepository(runner *database.TxRunner) *Repository {
	return &Repository{runner: runner, db: runner.DB()}
}

type txRepository struct {
	*ledger.TxRepository
	tx *sqlx.Tx
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return r.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

func (t *txRepository) InsertCheer(ctx context.Context, c *Cheer) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO cheers (id, from_account, to_account, points, message, created_at)
		VALUES (:id, :from_account, :to_account, :points, :message, :created_at)
	`, c)
	return err
}

func (r *Repository) GetCheer(ctx context.Context, id uuid.UUID, viewer string) (*View, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var v View
	err := r.db.GetContext(ctx, &v, viewSelect+` WHERE c.id = $2`, viewer, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repository) ListCheers(ctx context.Context, q ListQuery) ([]*View, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q = q.Normalize()
	args := []interface{}{q.Viewer}
	var where []string

	if q.ToAccount != "" {
		args = append(args, q.ToAccount)
		where = append(where, fmt.Sprintf("c.to_account = $%d", len(args)))
	}
	if q.FromAccount != "" {
		args = append(args, q.FromAccount)
		where = append(where, fmt.Sprintf("c.from_account = $%d", len(args)))
	}
	if q.Since != nil {
		args = append(args, *q.Since)
		where = append(where, fmt.Sprintf("c.created_at >= $%d", len(args)))
	}

	query := viewSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY c.created_at DESC, c.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	views := []*View{}
	if err := r.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, err
	}
	return views, nil
}

func (r *Repository) InsertComment(ctx context.Context, c *Comment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cheer_comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.CheerID, c.AuthorAccount, c.Text, c.CreatedAt, c.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return ErrCheerNotFound
	}
	return err
}

func (r *Repository) GetComment(ctx context.Context, id uuid.UUID) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Comment
	err := r.db.GetContext(ctx, &c, `SELECT `+commentColumns+` FROM cheer_comments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) UpdateComment(ctx context.Context, c *Comment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE cheer_comments SET text = $1, updated_at = $2 WHERE id = $3`,
		c.Text, c.UpdatedAt, c.ID)
	return expectOne(res, err, ErrCommentNotFound)
}

func (r *Repository) DeleteComment(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM cheer_comments WHERE id = $1`, id)
	return expectOne(res, err, ErrCommentNotFound)
}

func (r *Repository) ListComments(ctx context.Context, cheerID uuid.UUID, limit, offset int) ([]*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	comments := []*Comment{}
	err := r.db.SelectContext(ctx, &comments, `
		SELECT `+commentColumns+`
		FROM cheer_comments
		WHERE cheer_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, cheerID, limit, offset)
	return comments, err
}

// ToggleLike deletes the like if present, otherwise inserts it. The primary
// key on (cheer_id, account_id) keeps concurrent toggles from duplicating a like.
func (r *Repository) ToggleLike(ctx context.Context, cheerID uuid.UUID, accountID string, at time.Time) (*LikeResult, error) {
	var out *LikeResult
	err := r.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM cheer_likes WHERE cheer_id = $1 AND account_id = $2`, cheerID, accountID)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if removed == 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO cheer_likes (cheer_id, account_id, created_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (cheer_id, account_id) DO NOTHING
			`, cheerID, accountID, at)
			if database.IsForeignKeyViolation(err) {
				return ErrCheerNotFound
			}
			if err != nil {
				return err
			}
		}

		var count int64
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM cheer_likes WHERE cheer_id = $1`, cheerID); err != nil {
			return err
		}
		out = &LikeResult{CheerID: cheerID, Liked: removed == 0, LikeCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func expectOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
