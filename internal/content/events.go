package content

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumen-church/backend/pkg/response"
)

// Calendar handles GET /events/:slug/calendar, returning the entry handed
// to calendar and sharing exporters. Times are read in loc.
func Calendar(events *Events, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := events.lookup(c.Request.Context(), c.Param("slug"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, ev.CalendarEntry(loc))
	}
}
