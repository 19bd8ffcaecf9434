package entity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// RemoteRepository stores rows in a PostgreSQL table through gorm.
type RemoteRepository[T any, P Row[T]] struct {
	db      *gorm.DB
	schema  Schema[T]
	timeout time.Duration
}

// NewRemoteRepository creates a repository for schema.Table. timeout bounds
// every call; zero disables it.
func NewRemoteRepository[T any, P Row[T]](db *gorm.DB, schema Schema[T], timeout time.Duration) *RemoteRepository[T, P] {
	return &RemoteRepository[T, P]{db: db, schema: schema, timeout: timeout}
}

func (r *RemoteRepository[T, P]) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	return r.db.WithContext(ctx).Table(r.schema.Table), cancel
}

func (r *RemoteRepository[T, P]) op(name string) string {
	return r.schema.Name + "." + name
}

// List selects rows matching opts in schema order.
func (r *RemoteRepository[T, P]) List(ctx context.Context, opts models.ListOptions) ([]T, error) {
	q, cancel := r.session(ctx)
	defer cancel()

	eq := func(col string, v any) {
		if col != "" {
			q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: v})
		}
	}
	if opts.Published != nil {
		eq(r.schema.PublishedColumn, *opts.Published)
	}
	if opts.Featured != nil {
		eq(r.schema.FeaturedColumn, *opts.Featured)
	}
	if opts.Active != nil {
		eq(r.schema.ActiveColumn, *opts.Active)
	}
	if opts.Category != nil {
		eq(r.schema.CategoryColumn, *opts.Category)
	}
	if opts.Author != nil {
		eq(r.schema.AuthorColumn, *opts.Author)
	}
	if opts.Type != "" {
		eq(r.schema.TypeColumn, opts.Type)
	}
	if col := r.schema.DateColumn; col != "" {
		if opts.DateFrom != nil {
			q = q.Where(clause.Gte{Column: clause.Column{Name: col}, Value: opts.DateFrom.String()})
		}
		if opts.DateTo != nil {
			q = q.Where(clause.Lte{Column: clause.Column{Name: col}, Value: opts.DateTo.String()})
		}
	}
	if r.schema.Order != "" {
		q = q.Order(r.schema.Order)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.Classify(r.op("list"), err)
	}
	return rows, nil
}

// Get returns the row with id.
func (r *RemoteRepository[T, P]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	q, cancel := r.session(ctx)
	defer cancel()
	var row T
	if err := q.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, apperr.NotFound(r.op("get"), r.schema.Name+" not found").With("id", id.String())
		}
		return row, apperr.Classify(r.op("get"), err)
	}
	return row, nil
}

// FindBySlug returns the row with slug, or nil.
func (r *RemoteRepository[T, P]) FindBySlug(ctx context.Context, slug string) (*T, error) {
	q, cancel := r.session(ctx)
	defer cancel()
	var row T
	if err := q.Where("slug = ?", slug).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Classify(r.op("find_by_slug"), err)
	}
	return &row, nil
}

// Insert creates row as given; ids and timestamps are already assigned.
func (r *RemoteRepository[T, P]) Insert(ctx context.Context, row T) (T, error) {
	q, cancel := r.session(ctx)
	defer cancel()
	if err := q.Create(P(&row)).Error; err != nil {
		return row, apperr.Classify(r.op("insert"), err)
	}
	return row, nil
}

// Update writes every column of row guarded by the expected version.
func (r *RemoteRepository[T, P]) Update(ctx context.Context, row T, expectedVersion int64) (T, error) {
	q, cancel := r.session(ctx)
	defer cancel()
	id := P(&row).RowMeta().ID
	res := q.Where("id = ? AND version = ?", id, expectedVersion).
		Select("*").Omit("id", "created_at").
		UpdateColumns(P(&row))
	if res.Error != nil {
		return row, apperr.Classify(r.op("update"), res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return row, err
		}
		return row, apperr.Conflict(r.op("update"), "row was modified concurrently").
			With("id", id.String()).
			With("version", strconv.FormatInt(P(&cur).RowMeta().Version, 10))
	}
	return row, nil
}

// Delete removes the row with id; missing rows are ignored.
func (r *RemoteRepository[T, P]) Delete(ctx context.Context, id uuid.UUID) error {
	q, cancel := r.session(ctx)
	defer cancel()
	if err := q.Where("id = ?", id).Delete(P(new(T))).Error; err != nil {
		return apperr.Classify(r.op("delete"), err)
	}
	return nil
}

// Modify locks the row, applies fn and writes it back in one transaction.
func (r *RemoteRepository[T, P]) Modify(ctx context.Context, id uuid.UUID, fn func(P) error) (T, error) {
	q, cancel := r.session(ctx)
	defer cancel()
	var row T
	err := q.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(r.schema.Table).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).Take(&row).Error; err != nil {
			return err
		}
		if err := fn(P(&row)); err != nil {
			return err
		}
		P(&row).RowMeta().Touch(time.Now().UTC())
		return tx.Table(r.schema.Table).Where("id = ?", id).
			Select("*").Omit("id", "created_at").
			UpdateColumns(P(&row)).Error
	})
	if err != nil {
		var zero T
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, apperr.NotFound(r.op("modify"), r.schema.Name+" not found").With("id", id.String())
		}
		return zero, apperr.Classify(r.op("modify"), err)
	}
	return row, nil
}
