package interactions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/localstore"
)

var (
	ana   = &models.Identity{ID: "u-ana", Email: "ana@example.com", DisplayName: "Ana", Role: models.RoleMember}
	bruno = &models.Identity{ID: "u-bruno", Email: "bruno@example.com", Role: models.RoleMember}
	mod   = &models.Identity{ID: "u-mod", Email: "mod@example.com", Role: models.RoleEditor}
)

func openKV(t *testing.T) *localstore.SQLite {
	t.Helper()
	kv, err := localstore.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func newLocalService(t *testing.T, kv localstore.Store, ns models.Namespace, moderated bool) *Service {
	t.Helper()
	s := NewService(ns, NewLocalStore(kv, ns), moderated, nil)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestToggleLikeIsAnIdempotentPair(t *testing.T) {
	ctx := context.Background()
	kv := openKV(t)
	s := newLocalService(t, kv, models.NamespaceEvent, false)
	event := uuid.New()

	_, _, err := s.ToggleLike(ctx, bruno, event)
	require.NoError(t, err)
	before := s.LikesCount(event)

	liked, n, err := s.ToggleLike(ctx, ana, event)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, before+1, n)
	assert.True(t, s.HasLiked(ana, event))

	liked, n, err = s.ToggleLike(ctx, ana, event)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, before, n)
	assert.Equal(t, before, s.LikesCount(event))

	// the whole map was written through
	reloaded := newLocalService(t, kv, models.NamespaceEvent, false)
	assert.Equal(t, before, reloaded.LikesCount(event))
	assert.True(t, reloaded.HasLiked(bruno, event))
}

func TestToggleLikeMatchesByEmail(t *testing.T) {
	ctx := context.Background()
	s := newLocalService(t, openKV(t), models.NamespaceEvent, false)
	event := uuid.New()

	guest := &models.Identity{Email: "ana@example.com"}
	liked, _, err := s.ToggleLike(ctx, guest, event)
	require.NoError(t, err)
	require.True(t, liked)

	liked, n, err := s.ToggleLike(ctx, ana, event)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, n)
}

func TestToggleLikeRequiresIdentity(t *testing.T) {
	s := newLocalService(t, openKV(t), models.NamespaceSermon, false)
	_, _, err := s.ToggleLike(context.Background(), nil, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	kv := openKV(t)
	events := newLocalService(t, kv, models.NamespaceEvent, false)
	blog := newLocalService(t, kv, models.NamespaceBlogPost, true)
	id := uuid.New()

	_, err := events.AddComment(ctx, ana, id, "   \n\t")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = events.AddComment(ctx, nil, id, "hello")
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	c, err := events.AddComment(ctx, ana, id, "  See you there!  ")
	require.NoError(t, err)
	assert.Equal(t, "See you there!", c.Content)
	assert.Equal(t, "Ana", c.UserName)
	assert.True(t, c.IsApproved)
	assert.Equal(t, 1, events.CommentsCount(id))

	pending, err := blog.AddComment(ctx, ana, id, "Great post")
	require.NoError(t, err)
	assert.False(t, pending.IsApproved)
	assert.Zero(t, blog.CommentsCount(id))
	assert.Len(t, blog.Comments(id, true), 1)
	assert.Len(t, blog.Pending(), 1)

	approved, err := blog.ApproveComment(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.Equal(t, 1, blog.CommentsCount(id))
	assert.Empty(t, blog.Pending())

	reloaded := newLocalService(t, kv, models.NamespaceBlogPost, true)
	assert.Equal(t, 1, reloaded.CommentsCount(id))
	assert.Zero(t, newLocalService(t, kv, models.NamespaceSermon, false).CommentsCount(id))
}

func TestDeleteComment(t *testing.T) {
	ctx := context.Background()
	s := newLocalService(t, openKV(t), models.NamespaceEvent, false)
	event := uuid.New()

	c, err := s.AddComment(ctx, ana, event, "first")
	require.NoError(t, err)
	_, err = s.AddComment(ctx, bruno, uuid.New(), "elsewhere")
	require.NoError(t, err)

	err = s.DeleteComment(ctx, bruno, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Len(t, s.Comments(event, false), 1)

	err = s.DeleteComment(ctx, ana, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, s.DeleteComment(ctx, ana, c.ID))
	assert.Empty(t, s.Comments(event, false))

	other, err := s.AddComment(ctx, bruno, event, "spam")
	require.NoError(t, err)
	require.NoError(t, s.DeleteComment(ctx, mod, other.ID))
	assert.Zero(t, s.CommentsCount(event))
}

type failingStore struct{ Store }

func (failingStore) AddLike(context.Context, models.Like) error { return errors.New("disk full") }

func TestFailedWriteLeavesStateUntouched(t *testing.T) {
	s := NewService(models.NamespaceEvent, failingStore{NewLocalStore(openKV(t), models.NamespaceEvent)}, false, nil)
	event := uuid.New()
	_, _, err := s.ToggleLike(context.Background(), ana, event)
	assert.True(t, apperr.Is(err, apperr.KindDatabase))
	assert.Zero(t, s.LikesCount(event))
	assert.False(t, s.HasLiked(ana, event))
}

func TestRegistry(t *testing.T) {
	kv := openKV(t)
	r := NewRegistry(func(ns models.Namespace) Store { return NewLocalStore(kv, ns) }, nil)
	require.NoError(t, r.LoadAll(context.Background()))
	assert.Len(t, r, 3)
	assert.True(t, r[models.NamespaceBlogPost].Moderated())
	assert.False(t, r[models.NamespaceEvent].Moderated())
	assert.Same(t, r[models.NamespaceSermon], r.Tables()["sermon_comments"])
}

func TestWritesRequireExistingTarget(t *testing.T) {
	ctx := context.Background()
	kv := openKV(t)
	r := NewRegistry(func(ns models.Namespace) Store { return NewLocalStore(kv, ns) }, nil)
	known := uuid.New()
	r.Bind(models.NamespaceSermon, func(_ context.Context, id uuid.UUID) error {
		if id == known {
			return nil
		}
		return apperr.NotFound("sermons.get", "sermon not found")
	})
	s := r[models.NamespaceSermon]

	missing := uuid.New()
	_, _, err := s.ToggleLike(ctx, ana, missing)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = s.AddComment(ctx, ana, missing, "Amen")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, s.LikesCount(missing))
	assert.Zero(t, s.CommentsCount(missing))

	liked, _, err := s.ToggleLike(ctx, ana, known)
	require.NoError(t, err)
	assert.True(t, liked)
	_, err = s.AddComment(ctx, ana, known, "Amen")
	require.NoError(t, err)

	// unbound namespaces accept any target
	_, _, err = r[models.NamespaceEvent].ToggleLike(ctx, ana, missing)
	assert.NoError(t, err)
}
