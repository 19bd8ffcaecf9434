// Package entity implements cached CRUD collections over interchangeable
// storage backends: the remote database or the local fallback store.
package entity

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumen-church/backend/internal/models"
)

// Row constrains T so that *T is a models.Entity.
type Row[T any] interface {
	*T
	models.Entity
}

// Repository persists rows of one entity type. A running instance uses a
// single implementation for each entity; remote and local are never mixed.
type Repository[T any] interface {
	List(ctx context.Context, opts models.ListOptions) ([]T, error)
	// Get returns a NotFound error when id does not exist.
	Get(ctx context.Context, id uuid.UUID) (T, error)
	// FindBySlug returns (nil, nil) when nothing matches.
	FindBySlug(ctx context.Context, slug string) (*T, error)
	Insert(ctx context.Context, row T) (T, error)
	// Update stores row if the persisted version still equals expectedVersion.
	Update(ctx context.Context, row T, expectedVersion int64) (T, error)
	// Delete is idempotent: deleting a missing id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Modifier applies an atomic read-modify-write to one row.
type Modifier[T any, P Row[T]] interface {
	Modify(ctx context.Context, id uuid.UUID, fn func(P) error) (T, error)
}

// Schema describes where an entity lives and how its list options map to
// columns. Empty column names disable the matching option remotely.
type Schema[T any] struct {
	Name       string
	Table      string
	StorageKey string

	PublishedColumn string
	FeaturedColumn  string
	ActiveColumn    string
	CategoryColumn  string
	AuthorColumn    string
	TypeColumn      string
	DateColumn      string

	// Order is the SQL ORDER BY used remotely.
	Order string
	// Less orders rows in the local backend; nil keeps insertion order.
	Less func(a, b *T) bool
	// Prepend places newly created rows first in cached lists.
	Prepend bool
}
