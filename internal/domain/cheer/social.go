package cheer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/feed"
	"github.com/cheers/cheers-api/internal/domain/ledger"
)

// GetFeed returns recent cheers inside window, newest first.
func (s *Service) GetFeed(ctx context.Context, viewer string, window ledger.Window, limit, offset int) ([]*View, error) {
	q := ListQuery{Viewer: viewer, Limit: limit, Offset: offset}
	if start := window.Start(s.ledger.Now()); !start.IsZero() {
		q.Since = &start
	}
	return s.list(ctx, q)
}

// GetReceived returns cheers addressed to account.
func (s *Service) GetReceived(ctx context.Context, viewer, account string, limit, offset int) ([]*View, error) {
	if err := ledger.ValidateAccount(account); err != nil {
		return nil, err
	}
	return s.list(ctx, ListQuery{Viewer: viewer, ToAccount: account, Limit: limit, Offset: offset})
}

// GetGiven returns cheers sent by account.
func (s *Service) GetGiven(ctx context.Context, viewer, account string, limit, offset int) ([]*View, error) {
	if err := ledger.ValidateAccount(account); err != nil {
		return nil, err
	}
	return s.list(ctx, ListQuery{Viewer: viewer, FromAccount: account, Limit: limit, Offset: offset})
}

func (s *Service) list(ctx context.Context, q ListQuery) ([]*View, error) {
	views, err := s.store.ListCheers(ctx, q.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list cheers: %w", err)
	}
	return views, nil
}

func (s *Service) GetCheer(ctx context.Context, id uuid.UUID, viewer string) (*View, error) {
	return s.store.GetCheer(ctx, id, viewer)
}

func normalizeCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return "", ErrCommentTooLong
	}
	return text, nil
}

// AddComment attaches a comment by author to a cheer.
func (s *Service) AddComment(ctx context.Context, cheerID uuid.UUID, author, text string) (*Comment, error) {
	if err := ledger.ValidateAccount(author); err != nil {
		return nil, err
	}
	text, err := normalizeCommentText(text)
	if err != nil {
		return nil, err
	}

	now := s.ledger.Now()
	c := &Comment{
		ID:            uuid.New(),
		CheerID:       cheerID,
		AuthorAccount: author,
		Text:          text,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertComment(ctx, c); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, feed.Event{Type: feed.EventCommentAdded, CheerID: cheerID, Actor: author, Data: c, At: now})
	return c, nil
}

// EditComment replaces the text of a comment. Only its author may edit it.
func (s *Service) EditComment(ctx context.Context, commentID uuid.UUID, actor, text string) (*Comment, error) {
	text, err := normalizeCommentText(text)
	if err != nil {
		return nil, err
	}

	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorAccount != actor {
		return nil, ErrForbidden
	}

	c.Text = text
	c.UpdatedAt = s.ledger.Now()
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, feed.Event{Type: feed.EventCommentEdited, CheerID: c.CheerID, Actor: actor, Data: c, At: c.UpdatedAt})
	return c, nil
}

// DeleteComment removes a comment. The author may delete it; admins may as moderation.
func (s *Service) DeleteComment(ctx context.Context, commentID uuid.UUID, actor string, admin bool) error {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorAccount != actor && !admin {
		return ErrForbidden
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, feed.Event{
		Type:    feed.EventCommentDeleted,
		CheerID: c.CheerID,
		Actor:   actor,
		Data:    map[string]string{"comment_id": c.ID.String()},
		At:      s.ledger.Now(),
	})
	return nil
}

// ListComments returns a cheer's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, cheerID uuid.UUID, limit, offset int) ([]*Comment, error) {
	if _, err := s.store.GetCheer(ctx, cheerID, ""); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.store.ListComments(ctx, cheerID, limit, offset)
}

// ToggleLike likes the cheer for account, or removes an existing like.
func (s *Service) ToggleLike(ctx context.Context, cheerID uuid.UUID, account string) (*LikeResult, error) {
	if err := ledger.ValidateAccount(account); err != nil {
		return nil, err
	}
	now := s.ledger.Now()
	res, err := s.store.ToggleLike(ctx, cheerID, account, now)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, feed.Event{Type: feed.EventLikeToggled, CheerID: cheerID, Actor: account, Data: res, At: now})
	return res, nil
}
