package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/cheer"
)

type cheerStore struct {
	s *Store
}

func (c *cheerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx cheer.Tx) error) error {
	return c.s.withTx(ctx, func(tx *memTx) error { return fn(ctx, tx) })
}

func (st *state) view(ch cheer.Cheer, viewer string) *cheer.View {
	v := &cheer.View{Cheer: ch}
	for _, cm := range st.comments {
		if cm.CheerID == ch.ID {
			v.CommentCount++
		}
	}
	for k := range st.likes {
		if k.cheerID == ch.ID {
			v.LikeCount++
			if k.accountID == viewer {
				v.LikedByMe = true
			}
		}
	}
	return v
}

func (c *cheerStore) GetCheer(_ context.Context, id uuid.UUID, viewer string) (*cheer.View, error) {
	var out *cheer.View
	c.s.read(func(st *state) {
		if ch, ok := st.cheers[id]; ok {
			out = st.view(ch, viewer)
		}
	})
	if out == nil {
		return nil, cheer.ErrCheerNotFound
	}
	return out, nil
}

func (c *cheerStore) ListCheers(_ context.Context, q cheer.ListQuery) ([]*cheer.View, error) {
	q = q.Normalize()

	var matched []cheer.Cheer
	c.s.read(func(st *state) {
		for _, ch := range st.cheers {
			if q.ToAccount != "" && ch.ToAccount != q.ToAccount {
				continue
			}
			if q.FromAccount != "" && ch.FromAccount != q.FromAccount {
				continue
			}
			if q.Since != nil && ch.CreatedAt.Before(*q.Since) {
				continue
			}
			matched = append(matched, ch)
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if q.Offset >= len(matched) {
		return []*cheer.View{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*cheer.View, 0, end-q.Offset)
	c.s.read(func(st *state) {
		for _, ch := range matched[q.Offset:end] {
			out = append(out, st.view(ch, q.Viewer))
		}
	})
	return out, nil
}

func (c *cheerStore) InsertComment(_ context.Context, cm *cheer.Comment) error {
	return c.s.write(func(st *state) error {
		if _, ok := st.cheers[cm.CheerID]; !ok {
			return cheer.ErrCheerNotFound
		}
		st.comments[cm.ID] = *cm
		return nil
	})
}

func (c *cheerStore) GetComment(_ context.Context, id uuid.UUID) (*cheer.Comment, error) {
	var out *cheer.Comment
	c.s.read(func(st *state) {
		if cm, ok := st.comments[id]; ok {
			out = &cm
		}
	})
	if out == nil {
		return nil, cheer.ErrCommentNotFound
	}
	return out, nil
}

func (c *cheerStore) UpdateComment(_ context.Context, cm *cheer.Comment) error {
	return c.s.write(func(st *state) error {
		existing, ok := st.comments[cm.ID]
		if !ok {
			return cheer.ErrCommentNotFound
		}
		existing.Text = cm.Text
		existing.UpdatedAt = cm.UpdatedAt
		st.comments[cm.ID] = existing
		return nil
	})
}

func (c *cheerStore) DeleteComment(_ context.Context, id uuid.UUID) error {
	return c.s.write(func(st *state) error {
		if _, ok := st.comments[id]; !ok {
			return cheer.ErrCommentNotFound
		}
		delete(st.comments, id)
		return nil
	})
}

func (c *cheerStore) ListComments(_ context.Context, cheerID uuid.UUID, limit, offset int) ([]*cheer.Comment, error) {
	var matched []*cheer.Comment
	c.s.read(func(st *state) {
		for _, cm := range st.comments {
			if cm.CheerID == cheerID {
				cm := cm
				matched = append(matched, &cm)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []*cheer.Comment{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (c *cheerStore) ToggleLike(_ context.Context, cheerID uuid.UUID, accountID string, _ time.Time) (*cheer.LikeResult, error) {
	var out *cheer.LikeResult
	err := c.s.write(func(st *state) error {
		if _, ok := st.cheers[cheerID]; !ok {
			return cheer.ErrCheerNotFound
		}
		key := likeKey{cheerID: cheerID, accountID: accountID}
		_, liked := st.likes[key]
		if liked {
			delete(st.likes, key)
		} else {
			st.likes[key] = struct{}{}
		}

		var count int64
		for k := range st.likes {
			if k.cheerID == cheerID {
				count++
			}
		}
		out = &cheer.LikeResult{CheerID: cheerID, Liked: !liked, LikeCount: count}
		return nil
	})
	return out, err
}
