package entity

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/localstore"
)

// LocalRepository keeps all rows of an entity as one JSON array in the
// local fallback store. Every write rewrites the whole array.
type LocalRepository[T any, P Row[T]] struct {
	store  localstore.Store
	schema Schema[T]
	now    func() time.Time
	mu     sync.Mutex
}

// NewLocalRepository creates a repository under schema.StorageKey.
func NewLocalRepository[T any, P Row[T]](store localstore.Store, schema Schema[T]) *LocalRepository[T, P] {
	return &LocalRepository[T, P]{
		store:  store,
		schema: schema,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *LocalRepository[T, P]) op(name string) string {
	return r.schema.Name + "." + name
}

func (r *LocalRepository[T, P]) load(ctx context.Context) ([]T, error) {
	var rows []T
	if err := localstore.LoadJSON(ctx, r.store, r.schema.StorageKey, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LocalRepository[T, P]) save(ctx context.Context, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	return localstore.SaveJSON(ctx, r.store, r.schema.StorageKey, rows)
}

func (r *LocalRepository[T, P]) index(rows []T, id uuid.UUID) int {
	for i := range rows {
		if P(&rows[i]).RowMeta().ID == id {
			return i
		}
	}
	return -1
}

// List filters and orders the stored array in memory.
func (r *LocalRepository[T, P]) List(ctx context.Context, opts models.ListOptions) ([]T, error) {
	r.mu.Lock()
	rows, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, apperr.Classify(r.op("list"), err)
	}

	out := make([]T, 0, len(rows))
	for i := range rows {
		if P(&rows[i]).Matches(opts) {
			out = append(out, rows[i])
		}
	}
	if r.schema.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return r.schema.Less(&out[i], &out[j]) })
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r *LocalRepository[T, P]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	rows, err := r.load(ctx)
	if err != nil {
		return zero, apperr.Classify(r.op("get"), err)
	}
	i := r.index(rows, id)
	if i < 0 {
		return zero, apperr.NotFound(r.op("get"), r.schema.Name+" not found").With("id", id.String())
	}
	return rows[i], nil
}

func (r *LocalRepository[T, P]) FindBySlug(ctx context.Context, slug string) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load(ctx)
	if err != nil {
		return nil, apperr.Classify(r.op("find_by_slug"), err)
	}
	for i := range rows {
		if P(&rows[i]).RowSlug() == slug {
			row := rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

// Insert appends row. Duplicate ids or slugs are conflicts.
func (r *LocalRepository[T, P]) Insert(ctx context.Context, row T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load(ctx)
	if err != nil {
		return row, apperr.Classify(r.op("insert"), err)
	}
	id, slug := P(&row).RowMeta().ID, P(&row).RowSlug()
	for i := range rows {
		p := P(&rows[i])
		if p.RowMeta().ID == id {
			return row, apperr.Conflict(r.op("insert"), "duplicate id").With("id", id.String())
		}
		if slug != "" && p.RowSlug() == slug {
			return row, apperr.Conflict(r.op("insert"), "duplicate slug").With("slug", slug)
		}
	}
	if err := r.save(ctx, append(rows, row)); err != nil {
		return row, apperr.Classify(r.op("insert"), err)
	}
	return row, nil
}

// Update replaces the stored row when its version equals expectedVersion.
func (r *LocalRepository[T, P]) Update(ctx context.Context, row T, expectedVersion int64) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := P(&row).RowMeta().ID
	rows, err := r.load(ctx)
	if err != nil {
		return row, apperr.Classify(r.op("update"), err)
	}
	i := r.index(rows, id)
	if i < 0 {
		return row, apperr.NotFound(r.op("update"), r.schema.Name+" not found").With("id", id.String())
	}
	if v := P(&rows[i]).RowMeta().Version; v != expectedVersion {
		return row, apperr.Conflict(r.op("update"), "row was modified concurrently").
			With("id", id.String()).
			With("version", strconv.FormatInt(v, 10))
	}
	if slug := P(&row).RowSlug(); slug != "" {
		for j := range rows {
			if j != i && P(&rows[j]).RowSlug() == slug {
				return row, apperr.Conflict(r.op("update"), "duplicate slug").With("slug", slug)
			}
		}
	}
	rows[i] = row
	if err := r.save(ctx, rows); err != nil {
		return row, apperr.Classify(r.op("update"), err)
	}
	return row, nil
}

func (r *LocalRepository[T, P]) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load(ctx)
	if err != nil {
		return apperr.Classify(r.op("delete"), err)
	}
	i := r.index(rows, id)
	if i < 0 {
		return nil
	}
	rows = append(rows[:i], rows[i+1:]...)
	if err := r.save(ctx, rows); err != nil {
		return apperr.Classify(r.op("delete"), err)
	}
	return nil
}

// Modify runs fn on a copy of the row and stores the result with a bumped
// version. The store is locked for the whole read-modify-write, so
// concurrent Modify calls on one repository never lose updates.
func (r *LocalRepository[T, P]) Modify(ctx context.Context, id uuid.UUID, fn func(P) error) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	rows, err := r.load(ctx)
	if err != nil {
		return zero, apperr.Classify(r.op("modify"), err)
	}
	i := r.index(rows, id)
	if i < 0 {
		return zero, apperr.NotFound(r.op("modify"), r.schema.Name+" not found").With("id", id.String())
	}
	row := rows[i]
	if err := fn(P(&row)); err != nil {
		return zero, err
	}
	P(&row).RowMeta().Touch(r.now())
	rows[i] = row
	if err := r.save(ctx, rows); err != nil {
		return zero, apperr.Classify(r.op("modify"), err)
	}
	return row, nil
}
