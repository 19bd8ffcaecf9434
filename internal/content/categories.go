package content

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-church/backend/pkg/response"
)

// CategorySet routes category requests to the resource of their kind.
type CategorySet map[string]*Categories

func (s CategorySet) resource(c *gin.Context) (*Categories, bool) {
	r, ok := s[c.Param("kind")]
	if !ok {
		response.NotFound(c, "unknown category kind")
	}
	return r, ok
}

func (s CategorySet) dispatch(fn func(*Categories, *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r, ok := s.resource(c); ok {
			fn(r, c)
		}
	}
}

// Routes mounts /:kind, /:kind/:slug on pub and the CRUD under /:kind on admin.
func (s CategorySet) Routes(pub, admin gin.IRoutes) {
	pub.GET("/:kind", s.dispatch((*Categories).List))
	pub.GET("/:kind/:slug", s.dispatch((*Categories).Show))
	admin.GET("/:kind", s.dispatch((*Categories).AdminList))
	admin.GET("/:kind/:id", s.dispatch((*Categories).AdminGet))
	admin.POST("/:kind", s.dispatch((*Categories).Create))
	admin.PATCH("/:kind/:id", s.dispatch((*Categories).Update))
	admin.DELETE("/:kind/:id", s.dispatch((*Categories).Delete))
}

// Close releases every kind's cached collection.
func (s CategorySet) Close() {
	for _, r := range s {
		r.Close()
	}
}
