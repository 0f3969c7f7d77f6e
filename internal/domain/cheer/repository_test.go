package cheer

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/pkg/database"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(database.NewTxRunner(sqlx.NewDb(db, "postgres"), 0)), mock
}

var viewCols = []string{
	"id", "from_account", "to_account", "points", "message", "created_at",
	"comment_count", "like_count", "liked_by_me",
}

func TestRepositoryGetCheer(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT c.id.*FROM cheers c WHERE c.id = \$2`).
		WithArgs("carol", id).
		WillReturnRows(sqlmock.NewRows(viewCols).AddRow(id, "alice", "bob", 25, "thanks", now, 2, 3, true))

	v, err := repo.GetCheer(context.Background(), id, "carol")
	require.NoError(t, err)
	assert.Equal(t, "alice", v.FromAccount)
	assert.Equal(t, int64(25), v.Points)
	assert.Equal(t, int64(2), v.CommentCount)
	assert.Equal(t, int64(3), v.LikeCount)
	assert.True(t, v.LikedByMe)

	mock.ExpectQuery(`(?s)SELECT c.id.*FROM cheers c WHERE c.id = \$2`).
		WithArgs("carol", id).
		WillReturnRows(sqlmock.NewRows(viewCols))

	_, err = repo.GetCheer(context.Background(), id, "carol")
	assert.ErrorIs(t, err, ErrCheerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListCheersFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)WHERE c.to_account = \$2 AND c.created_at >= \$3 ORDER BY c.created_at DESC, c.id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("alice", "bob", since, 20, 0).
		WillReturnRows(sqlmock.NewRows(viewCols))

	views, err := repo.ListCheers(context.Background(), ListQuery{Viewer: "alice", ToAccount: "bob", Since: &since})
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryInsertCommentMissingCheer(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO cheer_comments`).
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.InsertComment(context.Background(), &Comment{
		ID: uuid.New(), CheerID: uuid.New(), AuthorAccount: "carol", Text: "hi", CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrCheerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryToggleLikeInsertsWhenAbsent(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM cheer_likes`).WithArgs(id, "carol").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO cheer_likes`).WithArgs(id, "carol", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cheer_likes`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	res, err := repo.ToggleLike(context.Background(), id, "carol", now)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(4), res.LikeCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryToggleLikeRemovesExisting(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM cheer_likes`).WithArgs(id, "carol").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cheer_likes`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	res, err := repo.ToggleLike(context.Background(), id, "carol", time.Now())
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.LikeCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
