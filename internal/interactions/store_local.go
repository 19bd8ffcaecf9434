package interactions

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/localstore"
)

// LocalStore keeps a namespace's likes and comments as two maps under
// "<ns>_likes" and "<ns>_comments". Every write rewrites the whole map.
type LocalStore struct {
	kv          localstore.Store
	likesKey    string
	commentsKey string
	mu          sync.Mutex
}

func NewLocalStore(kv localstore.Store, ns models.Namespace) *LocalStore {
	return &LocalStore{
		kv:          kv,
		likesKey:    string(ns) + "_likes",
		commentsKey: string(ns) + "_comments",
	}
}

func (s *LocalStore) Load(ctx context.Context) (Likes, Comments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	likes, err := s.likes(ctx)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.comments(ctx)
	if err != nil {
		return nil, nil, err
	}
	return likes, comments, nil
}

func (s *LocalStore) likes(ctx context.Context) (Likes, error) {
	m := Likes{}
	if err := localstore.LoadJSON(ctx, s.kv, s.likesKey, &m); err != nil {
		return nil, apperr.Classify("interactions.load_likes", err)
	}
	return m, nil
}

func (s *LocalStore) comments(ctx context.Context) (Comments, error) {
	m := Comments{}
	if err := localstore.LoadJSON(ctx, s.kv, s.commentsKey, &m); err != nil {
		return nil, apperr.Classify("interactions.load_comments", err)
	}
	return m, nil
}

func (s *LocalStore) updateLikes(ctx context.Context, op string, fn func(Likes)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.likes(ctx)
	if err != nil {
		return err
	}
	fn(m)
	if err := localstore.SaveJSON(ctx, s.kv, s.likesKey, m); err != nil {
		return apperr.Classify(op, err)
	}
	return nil
}

func (s *LocalStore) updateComments(ctx context.Context, op string, fn func(Comments) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.comments(ctx)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	if err := localstore.SaveJSON(ctx, s.kv, s.commentsKey, m); err != nil {
		return apperr.Classify(op, err)
	}
	return nil
}

func (s *LocalStore) AddLike(ctx context.Context, l models.Like) error {
	return s.updateLikes(ctx, "interactions.add_like", func(m Likes) {
		m[l.EntityID] = append(m[l.EntityID], l)
	})
}

func (s *LocalStore) RemoveLike(ctx context.Context, entityID, likeID uuid.UUID) error {
	return s.updateLikes(ctx, "interactions.remove_like", func(m Likes) {
		list := m[entityID][:0:0]
		for _, l := range m[entityID] {
			if l.ID != likeID {
				list = append(list, l)
			}
		}
		if len(list) == 0 {
			delete(m, entityID)
			return
		}
		m[entityID] = list
	})
}

func (s *LocalStore) AddComment(ctx context.Context, c models.Comment) error {
	return s.updateComments(ctx, "interactions.add_comment", func(m Comments) error {
		m[c.EntityID] = append(m[c.EntityID], c)
		return nil
	})
}

func (s *LocalStore) RemoveComment(ctx context.Context, entityID, commentID uuid.UUID) error {
	return s.updateComments(ctx, "interactions.remove_comment", func(m Comments) error {
		list := m[entityID][:0:0]
		for _, c := range m[entityID] {
			if c.ID != commentID {
				list = append(list, c)
			}
		}
		if len(list) == 0 {
			delete(m, entityID)
			return nil
		}
		m[entityID] = list
		return nil
	})
}

func (s *LocalStore) ApproveComment(ctx context.Context, entityID, commentID uuid.UUID) error {
	return s.updateComments(ctx, "interactions.approve_comment", func(m Comments) error {
		for i := range m[entityID] {
			if m[entityID][i].ID == commentID {
				m[entityID][i].IsApproved = true
				return nil
			}
		}
		return apperr.NotFound("interactions.approve_comment", "comment not found")
	})
}
