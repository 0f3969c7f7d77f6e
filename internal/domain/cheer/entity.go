package cheer

import (
	"time"

	"github.com/google/uuid"
)

// Cheer is a public recognition: points moved from one account to another with a message.
type Cheer struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FromAccount string    `db:"from_account" json:"from_account"`
	ToAccount   string    `db:"to_account" json:"to_account"`
	Points      int64     `db:"points" json:"points"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// View is a cheer with its social counters as seen by one viewer.
type View struct {
	Cheer
	CommentCount int64 `db:"comment_count" json:"comment_count"`
	LikeCount    int64 `db:"like_count" json:"like_count"`
	LikedByMe    bool  `db:"liked_by_me" json:"liked_by_me"`
}

// Comment is a reply attached to a cheer.
type Comment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CheerID       uuid.UUID `db:"cheer_id" json:"cheer_id"`
	AuthorAccount string    `db:"author_account" json:"author_account"`
	Text          string    `db:"text" json:"text"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	CheerID   uuid.UUID `json:"cheer_id"`
	Liked     bool      `json:"liked"`
	LikeCount int64     `json:"like_count"`
}

// ListQuery selects a page of cheers, newest first.
type ListQuery struct {
	Viewer      string
	ToAccount   string
	FromAccount string
	Since       *time.Time
	Limit       int
	Offset      int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Normalize applies the default and maximum page sizes.
func (q ListQuery) Normalize() ListQuery {
	q.Limit, q.Offset = normalizePage(q.Limit, q.Offset)
	return q
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
