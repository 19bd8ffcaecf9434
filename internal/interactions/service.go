package interactions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// MaxCommentLength bounds comment text, in runes.
const MaxCommentLength = 2000

// Service holds a namespace's likes and comments in memory and writes
// through to its Store. Counts are read from memory.
type Service struct {
	ns        models.Namespace
	moderated bool
	store     Store
	lookup    Lookup
	logger    *zap.Logger
	now       func() time.Time

	// writeMu serializes writes so a toggle sees the result of the previous one.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	likes    Likes
	comments Comments
}

// NewService creates the service for ns. Comments in moderated namespaces
// stay hidden until approved.
func NewService(ns models.Namespace, store Store, moderated bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ns:        ns,
		moderated: moderated,
		store:     store,
		logger:    logger.With(zap.String("namespace", string(ns))),
		now:       func() time.Time { return time.Now().UTC() },
		likes:     Likes{},
		comments:  Comments{},
	}
}

// Lookup checks that the row a like or comment targets exists.
type Lookup func(ctx context.Context, id uuid.UUID) error

// SetLookup makes new likes and comments check their target first. Call it
// before the service is used.
func (s *Service) SetLookup(fn Lookup) { s.lookup = fn }

func (s *Service) Namespace() models.Namespace { return s.ns }

func (s *Service) Moderated() bool { return s.moderated }

func (s *Service) op(name string) string {
	return string(s.ns) + "_interactions." + name
}

func (s *Service) checkTarget(ctx context.Context, op string, entityID uuid.UUID) error {
	if s.lookup == nil {
		return nil
	}
	err := s.lookup(ctx, entityID)
	if err == nil {
		return nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.NotFound(s.op(op), string(s.ns)+" not found").With("entity_id", entityID.String())
	}
	return s.fail(op, err, entityID)
}

// Load replaces the in-memory maps with the store's contents.
func (s *Service) Load(ctx context.Context) error {
	likes, comments, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Error("load interactions failed", zap.Error(err))
		return apperr.Classify(s.op("load"), err)
	}
	s.mu.Lock()
	s.likes, s.comments = likes, comments
	s.mu.Unlock()
	return nil
}

// ToggleLike likes entityID for who, or removes who's existing like. It
// returns the new liked state and like count.
func (s *Service) ToggleLike(ctx context.Context, who *models.Identity, entityID uuid.UUID) (bool, int, error) {
	if who == nil {
		return false, 0, apperr.Authentication(s.op("toggle_like"), "sign in to like")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	var existing *models.Like
	for _, l := range s.likes[entityID] {
		if who.Owns(l.UserID, l.UserEmail) {
			l := l
			existing = &l
			break
		}
	}
	s.mu.RUnlock()

	if existing != nil {
		if err := s.store.RemoveLike(ctx, entityID, existing.ID); err != nil {
			return true, s.LikesCount(entityID), s.fail("toggle_like", err, entityID)
		}
		s.mu.Lock()
		list := s.likes[entityID][:0:0]
		for _, l := range s.likes[entityID] {
			if l.ID != existing.ID {
				list = append(list, l)
			}
		}
		if len(list) == 0 {
			delete(s.likes, entityID)
		} else {
			s.likes[entityID] = list
		}
		n := len(s.likes[entityID])
		s.mu.Unlock()
		return false, n, nil
	}

	if err := s.checkTarget(ctx, "toggle_like", entityID); err != nil {
		return false, s.LikesCount(entityID), err
	}
	like := models.Like{
		ID:        uuid.New(),
		EntityID:  entityID,
		UserID:    who.ID,
		UserEmail: who.Email,
		CreatedAt: s.now(),
	}
	if err := s.store.AddLike(ctx, like); err != nil {
		return false, s.LikesCount(entityID), s.fail("toggle_like", err, entityID)
	}
	s.mu.Lock()
	s.likes[entityID] = append(s.likes[entityID], like)
	n := len(s.likes[entityID])
	s.mu.Unlock()
	return true, n, nil
}

// AddComment stores a comment by who. Blank text is rejected.
func (s *Service) AddComment(ctx context.Context, who *models.Identity, entityID uuid.UUID, text string) (models.Comment, error) {
	if who == nil {
		return models.Comment{}, apperr.Authentication(s.op("add_comment"), "sign in to comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, apperr.Validation("comment cannot be empty", map[string]string{"content": "required"})
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return models.Comment{}, apperr.Validation("comment is too long", map[string]string{"content": "max 2000 characters"})
	}

	c := models.Comment{
		ID:         uuid.New(),
		EntityID:   entityID,
		UserID:     who.ID,
		UserEmail:  who.Email,
		UserName:   who.Name(),
		Content:    text,
		IsApproved: !s.moderated,
		CreatedAt:  s.now(),
	}

	if err := s.checkTarget(ctx, "add_comment", entityID); err != nil {
		return models.Comment{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.AddComment(ctx, c); err != nil {
		return models.Comment{}, s.fail("add_comment", err, entityID)
	}
	s.mu.Lock()
	s.comments[entityID] = append(s.comments[entityID], c)
	s.mu.Unlock()
	return c, nil
}

// find locates a comment across all entities.
func (s *Service) find(commentID uuid.UUID) (models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, list := range s.comments {
		for _, c := range list {
			if c.ID == commentID {
				return c, true
			}
		}
	}
	return models.Comment{}, false
}

// DeleteComment removes a comment written by who. Moderators may remove
// any comment.
func (s *Service) DeleteComment(ctx context.Context, who *models.Identity, commentID uuid.UUID) error {
	if who == nil {
		return apperr.Authentication(s.op("delete_comment"), "sign in to delete comments")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	c, ok := s.find(commentID)
	if !ok {
		return apperr.NotFound(s.op("delete_comment"), "comment not found").With("comment_id", commentID.String())
	}
	if !who.Owns(c.UserID, c.UserEmail) && !who.Role.Can(models.PermCommentsModerate) {
		return apperr.Authorization(s.op("delete_comment"), "you can only delete your own comments").
			With("comment_id", commentID.String())
	}
	if err := s.store.RemoveComment(ctx, c.EntityID, c.ID); err != nil {
		return s.fail("delete_comment", err, c.EntityID)
	}

	s.mu.Lock()
	list := s.comments[c.EntityID][:0:0]
	for _, x := range s.comments[c.EntityID] {
		if x.ID != c.ID {
			list = append(list, x)
		}
	}
	if len(list) == 0 {
		delete(s.comments, c.EntityID)
	} else {
		s.comments[c.EntityID] = list
	}
	s.mu.Unlock()
	return nil
}

// ApproveComment makes a pending comment visible.
func (s *Service) ApproveComment(ctx context.Context, commentID uuid.UUID) (models.Comment, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	c, ok := s.find(commentID)
	if !ok {
		return models.Comment{}, apperr.NotFound(s.op("approve_comment"), "comment not found").With("comment_id", commentID.String())
	}
	if c.IsApproved {
		return c, nil
	}
	if err := s.store.ApproveComment(ctx, c.EntityID, c.ID); err != nil {
		return models.Comment{}, s.fail("approve_comment", err, c.EntityID)
	}
	s.mu.Lock()
	for i := range s.comments[c.EntityID] {
		if s.comments[c.EntityID][i].ID == c.ID {
			s.comments[c.EntityID][i].IsApproved = true
		}
	}
	s.mu.Unlock()
	c.IsApproved = true
	return c, nil
}

func (s *Service) fail(op string, err error, entityID uuid.UUID) error {
	ae := apperr.Classify(s.op(op), err).With("entity_id", entityID.String())
	s.logger.Error("interaction write failed", zap.String("op", ae.Op), zap.String("entity_id", entityID.String()), zap.Error(err))
	return ae
}

// LikesCount returns the number of likes on entityID.
func (s *Service) LikesCount(entityID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.likes[entityID])
}

// HasLiked reports whether who likes entityID.
func (s *Service) HasLiked(who *models.Identity, entityID uuid.UUID) bool {
	if who == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.likes[entityID] {
		if who.Owns(l.UserID, l.UserEmail) {
			return true
		}
	}
	return false
}

// Comments returns the visible comments on entityID, oldest first. With
// includePending, unapproved comments are returned too.
func (s *Service) Comments(entityID uuid.UUID, includePending bool) []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Comment, 0, len(s.comments[entityID]))
	for _, c := range s.comments[entityID] {
		if includePending || c.IsApproved {
			out = append(out, c)
		}
	}
	return out
}

// CommentsCount returns the number of visible comments on entityID.
func (s *Service) CommentsCount(entityID uuid.UUID) int {
	return len(s.Comments(entityID, false))
}

// Pending returns every comment awaiting approval.
func (s *Service) Pending() []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Comment
	for _, list := range s.comments {
		for _, c := range list {
			if !c.IsApproved {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
