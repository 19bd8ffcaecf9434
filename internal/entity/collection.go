package entity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// Collection caches the rows of one entity type selected by a set of list
// options and exposes the state of its in-flight operations.
//
// Writes go to the repository first; the cache is only updated once the
// repository has accepted them. Failed operations leave the cache as it was
// and record the error. After Close, results that arrive are dropped.
type Collection[T any, P Row[T]] struct {
	name   string
	repo   Repository[T]
	schema Schema[T]
	logger *zap.Logger
	now    func() time.Time

	life   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	items    []T
	opts     models.ListOptions
	inflight int
	err      *apperr.Error
	loadedAt time.Time
}

// NewCollection creates an empty collection. Call Refresh to load it.
func NewCollection[T any, P Row[T]](repo Repository[T], schema Schema[T], opts models.ListOptions, logger *zap.Logger) *Collection[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Collection[T, P]{
		name:   schema.Name,
		repo:   repo,
		schema: schema,
		logger: logger.With(zap.String("collection", schema.Name)),
		now:    func() time.Time { return time.Now().UTC() },
		life:   life,
		cancel: cancel,
		opts:   opts,
	}
}

// Items returns a copy of the cached rows in display order.
func (c *Collection[T, P]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Loading reports whether any operation of this collection is in flight.
func (c *Collection[T, P]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// Err returns the error of the last failed operation, cleared by the next
// successful refresh.
func (c *Collection[T, P]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err == nil {
		return nil
	}
	return c.err
}

func (c *Collection[T, P]) Options() models.ListOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// LoadedAt is the time of the last successful refresh.
func (c *Collection[T, P]) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Close cancels in-flight operations. It is safe to call more than once.
func (c *Collection[T, P]) Close() {
	c.cancel()
}

func (c *Collection[T, P]) begin(ctx context.Context) (context.Context, func()) {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return opCtx, func() {
		stop()
		cancel()
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}
}

// commit applies fn under the write lock unless the collection was closed.
func (c *Collection[T, P]) commit(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.life.Err() != nil {
		return false
	}
	fn()
	return true
}

func (c *Collection[T, P]) fail(op string, err error, fields ...zap.Field) error {
	ae := apperr.Classify(c.name+"."+op, err)
	c.commit(func() { c.err = ae })
	fields = append(fields, zap.String("op", ae.Op), zap.String("kind", string(ae.Kind)), zap.Error(err))
	if ae.Kind == apperr.KindNotFound || ae.Kind == apperr.KindConflict || ae.Kind == apperr.KindValidation {
		c.logger.Info("collection operation rejected", fields...)
	} else {
		c.logger.Error("collection operation failed", fields...)
	}
	return ae
}

// Refresh refetches the whole list for the current options.
func (c *Collection[T, P]) Refresh(ctx context.Context) error {
	ctx, done := c.begin(ctx)
	defer done()

	opts := c.Options()
	rows, err := c.repo.List(ctx, opts)
	if err != nil {
		return c.fail("refresh", err)
	}
	c.commit(func() {
		// A newer SetOptions owns the list now.
		if !c.opts.Equal(opts) {
			return
		}
		c.items = rows
		c.err = nil
		c.loadedAt = c.now()
	})
	return nil
}

// SetOptions replaces the list options and refetches.
func (c *Collection[T, P]) SetOptions(ctx context.Context, opts models.ListOptions) error {
	c.mu.Lock()
	c.opts = opts
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Create stamps row with a new id, version 1 and timestamps, applies the
// entity defaults and inserts it. The stored row is returned.
func (c *Collection[T, P]) Create(ctx context.Context, row T) (T, error) {
	ctx, done := c.begin(ctx)
	defer done()

	p := P(&row)
	p.PrepareInsert()
	p.RowMeta().Stamp(c.now())

	stored, err := c.repo.Insert(ctx, row)
	if err != nil {
		return row, c.fail("create", err, zap.String("slug", p.RowSlug()))
	}
	c.commit(func() { c.place(stored) })
	return stored, nil
}

// Update merges patch over the stored row and persists it. A non-zero
// baseVersion must equal the stored version, otherwise the update is a
// conflict. The cached row keeps its position.
func (c *Collection[T, P]) Update(ctx context.Context, id uuid.UUID, patch Patch, baseVersion int64) (T, error) {
	ctx, done := c.begin(ctx)
	defer done()

	var zero T
	cur, err := c.repo.Get(ctx, id)
	if err != nil {
		return zero, c.fail("update", err, zap.String("id", id.String()))
	}
	version := P(&cur).RowMeta().Version
	if baseVersion != 0 && baseVersion != version {
		err := apperr.Conflict(c.name+".update", "row was modified concurrently").With("id", id.String())
		return zero, c.fail("update", err, zap.Int64("base_version", baseVersion), zap.Int64("version", version))
	}

	merged, err := Merge(cur, patch)
	if err != nil {
		return zero, c.fail("update", err, zap.String("id", id.String()))
	}
	meta := P(&merged).RowMeta()
	*meta = *P(&cur).RowMeta()
	meta.Touch(c.now())

	stored, err := c.repo.Update(ctx, merged, version)
	if err != nil {
		return zero, c.fail("update", err, zap.String("id", id.String()))
	}
	c.commit(func() { c.place(stored) })
	return stored, nil
}

// Delete removes the row. Deleting a missing row succeeds.
func (c *Collection[T, P]) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, done := c.begin(ctx)
	defer done()

	if err := c.repo.Delete(ctx, id); err != nil {
		return c.fail("delete", err, zap.String("id", id.String()))
	}
	c.commit(func() { c.remove(id) })
	return nil
}

// GetBySlug returns the cached row with slug, else asks the repository.
// It returns (nil, nil) when no row has that slug.
func (c *Collection[T, P]) GetBySlug(ctx context.Context, slug string) (*T, error) {
	c.mu.RLock()
	for i := range c.items {
		if P(&c.items[i]).RowSlug() == slug {
			row := c.items[i]
			c.mu.RUnlock()
			return &row, nil
		}
	}
	c.mu.RUnlock()

	ctx, done := c.begin(ctx)
	defer done()
	row, err := c.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, c.fail("get_by_slug", err, zap.String("slug", slug))
	}
	return row, nil
}

// Find returns the cached row with id.
func (c *Collection[T, P]) Find(id uuid.UUID) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Track folds a row written elsewhere into the cache.
func (c *Collection[T, P]) Track(row T) {
	c.commit(func() { c.place(row) })
}

// Forget drops a row deleted elsewhere from the cache.
func (c *Collection[T, P]) Forget(id uuid.UUID) {
	c.commit(func() { c.remove(id) })
}

func (c *Collection[T, P]) indexOf(id uuid.UUID) int {
	for i := range c.items {
		if P(&c.items[i]).RowMeta().ID == id {
			return i
		}
	}
	return -1
}

// place replaces the cached row with the same id, inserts a new one that
// matches the options, and drops one that no longer matches. The list never
// grows past the options' limit. Caller holds mu.
func (c *Collection[T, P]) place(row T) {
	c.insert(row)
	if limit := c.opts.Limit; limit > 0 && len(c.items) > limit {
		c.items = c.items[:limit:limit]
	}
}

func (c *Collection[T, P]) insert(row T) {
	i := c.indexOf(P(&row).RowMeta().ID)
	matches := P(&row).Matches(c.opts)
	switch {
	case i >= 0 && matches:
		c.items[i] = row
	case i >= 0:
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	case !matches:
	case c.schema.Prepend:
		c.items = append([]T{row}, c.items...)
	default:
		c.items = append(c.items, row)
	}
}

func (c *Collection[T, P]) remove(id uuid.UUID) {
	if i := c.indexOf(id); i >= 0 {
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	}
}
