// Package interactions implements likes and comments for events, blog posts
// and sermons.
package interactions

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumen-church/backend/internal/models"
)

// Likes and Comments are keyed by the liked or commented entity's id.
type (
	Likes    map[uuid.UUID][]models.Like
	Comments map[uuid.UUID][]models.Comment
)

// Store persists the interactions of one namespace.
type Store interface {
	Load(ctx context.Context) (Likes, Comments, error)
	AddLike(ctx context.Context, l models.Like) error
	RemoveLike(ctx context.Context, entityID, likeID uuid.UUID) error
	AddComment(ctx context.Context, c models.Comment) error
	RemoveComment(ctx context.Context, entityID, commentID uuid.UUID) error
	ApproveComment(ctx context.Context, entityID, commentID uuid.UUID) error
}
