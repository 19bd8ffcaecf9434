// Package content serves the public pages' data and the admin CRUD for
// every cached entity type.
package content

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/response"
)

// Resource serves one entity type. The public list is a long-lived
// collection kept fresh by realtime changes; filtered queries get a
// short-lived collection of their own.
type Resource[T any, P entity.Row[T]] struct {
	name    string
	repo    entity.Repository[T]
	schema  entity.Schema[T]
	public  models.ListOptions
	cache   *entity.Collection[T, P]
	check   func(*T) map[string]string
	prepare func(*gin.Context, *T)
	logger  *zap.Logger
}

// Option configures a Resource.
type Option[T any] func(*resourceOptions[T])

type resourceOptions[T any] struct {
	check   func(*T) map[string]string
	prepare func(*gin.Context, *T)
}

// WithCheck validates rows before create and after a patch is merged.
// It returns per-field messages; an empty map means the row is valid.
func WithCheck[T any](fn func(*T) map[string]string) Option[T] {
	return func(o *resourceOptions[T]) { o.check = fn }
}

// WithPrepare adjusts a row built from an admin request before it is created.
func WithPrepare[T any](fn func(*gin.Context, *T)) Option[T] {
	return func(o *resourceOptions[T]) { o.prepare = fn }
}

// NewResource creates the resource. public holds the visibility
// predicates every public query is restricted to.
func NewResource[T any, P entity.Row[T]](repo entity.Repository[T], schema entity.Schema[T], public models.ListOptions, logger *zap.Logger, opts ...Option[T]) *Resource[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o resourceOptions[T]
	for _, fn := range opts {
		fn(&o)
	}
	return &Resource[T, P]{
		name:    schema.Name,
		repo:    repo,
		schema:  schema,
		public:  public,
		cache:   entity.NewCollection[T, P](repo, schema, public, logger),
		check:   o.check,
		prepare: o.prepare,
		logger:  logger.With(zap.String("resource", schema.Name)),
	}
}

// Collection returns the cached public collection.
func (r *Resource[T, P]) Collection() *entity.Collection[T, P] { return r.cache }

// Repository returns the resource's repository.
func (r *Resource[T, P]) Repository() entity.Repository[T] { return r.repo }

// Refresh reloads the cached public collection.
func (r *Resource[T, P]) Refresh(ctx context.Context) error { return r.cache.Refresh(ctx) }

// Close releases the cached collection.
func (r *Resource[T, P]) Close() { r.cache.Close() }

func (r *Resource[T, P]) list(ctx context.Context, opts models.ListOptions) ([]T, error) {
	if opts.Equal(r.public) {
		if r.cache.LoadedAt().IsZero() || r.cache.Err() != nil {
			if err := r.cache.Refresh(ctx); err != nil {
				return nil, err
			}
		}
		return r.cache.Items(), nil
	}
	coll := entity.NewCollection[T, P](r.repo, r.schema, opts, r.logger)
	defer coll.Close()
	if err := coll.Refresh(ctx); err != nil {
		return nil, err
	}
	return coll.Items(), nil
}

// List handles GET /<resource>.
func (r *Resource[T, P]) List(c *gin.Context) {
	opts, err := parseOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := r.list(c.Request.Context(), restrict(opts, r.public))
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	response.OK(c, items)
}

// lookup returns the publicly visible row with slug.
func (r *Resource[T, P]) lookup(ctx context.Context, slug string) (*T, error) {
	row, err := r.cache.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if row == nil || !P(row).Matches(r.public) {
		return nil, apperr.NotFound(r.name+".get", r.name+" not found").With("slug", slug)
	}
	return row, nil
}

// Show handles GET /<resource>/:slug.
func (r *Resource[T, P]) Show(c *gin.Context) {
	row, err := r.lookup(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, row)
}

// AdminList handles GET /admin/<resource>, drafts included.
func (r *Resource[T, P]) AdminList(c *gin.Context) {
	opts, err := parseOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := r.list(c.Request.Context(), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	response.OK(c, items)
}

// AdminGet handles GET /admin/<resource>/:id.
func (r *Resource[T, P]) AdminGet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := r.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, row)
}

func (r *Resource[T, P]) validate(row *T) error {
	if r.check == nil {
		return nil
	}
	if fields := r.check(row); len(fields) > 0 {
		return apperr.Validation("please correct the highlighted fields", fields)
	}
	return nil
}

// Create handles POST /admin/<resource>.
func (r *Resource[T, P]) Create(c *gin.Context) {
	var row T
	if err := c.ShouldBindJSON(&row); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if r.prepare != nil {
		r.prepare(c, &row)
	}
	if err := r.validate(&row); err != nil {
		response.Error(c, err)
		return
	}
	created, err := r.cache.Create(c.Request.Context(), row)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update handles PATCH /admin/<resource>/:id. The body is a partial row;
// the version the client edited comes from "base_version" or If-Match.
func (r *Resource[T, P]) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch entity.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	base, err := baseVersion(c, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	delete(patch, "base_version")

	ctx := c.Request.Context()
	if r.check != nil {
		cur, err := r.repo.Get(ctx, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		merged, err := entity.Merge(cur, patch)
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := r.validate(&merged); err != nil {
			response.Error(c, err)
			return
		}
	}
	updated, err := r.cache.Update(ctx, id, patch, base)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("ETag", strconv.FormatInt(P(&updated).RowMeta().Version, 10))
	response.OK(c, updated)
}

// Delete handles DELETE /admin/<resource>/:id.
func (r *Resource[T, P]) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := r.cache.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Routes mounts the public reads on pub and the CRUD on admin.
func (r *Resource[T, P]) Routes(pub, admin gin.IRoutes) {
	pub.GET("", r.List)
	pub.GET("/:slug", r.Show)
	admin.GET("", r.AdminList)
	admin.GET("/:id", r.AdminGet)
	admin.POST("", r.Create)
	admin.PATCH("/:id", r.Update)
	admin.DELETE("/:id", r.Delete)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func baseVersion(c *gin.Context, patch entity.Patch) (int64, error) {
	if v, ok := patch["base_version"]; ok {
		if f, ok := v.(float64); ok && f >= 0 {
			return int64(f), nil
		}
		return 0, apperr.Validation("invalid base_version", map[string]string{"base_version": "must be a version number"})
	}
	if h := strings.Trim(c.GetHeader("If-Match"), `W/"`); h != "" {
		n, err := strconv.ParseInt(h, 10, 64)
		if err != nil || n < 0 {
			return 0, apperr.Validation("invalid If-Match header", nil)
		}
		return n, nil
	}
	return 0, nil
}
