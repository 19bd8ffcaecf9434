package content

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/auth"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
)

type (
	Events     = Resource[models.Event, *models.Event]
	Sermons    = Resource[models.Sermon, *models.Sermon]
	Posts      = Resource[models.BlogPost, *models.BlogPost]
	Ministries = Resource[models.Ministry, *models.Ministry]
	Categories = Resource[models.Category, *models.Category]
)

var (
	published = models.ListOptions{Published: models.Bool(true)}
	active    = models.ListOptions{Active: models.Bool(true)}
)

func NewEvents(repo entity.Repository[models.Event], logger *zap.Logger) *Events {
	return NewResource[models.Event, *models.Event](repo, entity.EventSchema, published, logger,
		WithCheck(checkEvent))
}

func NewSermons(repo entity.Repository[models.Sermon], logger *zap.Logger) *Sermons {
	return NewResource[models.Sermon, *models.Sermon](repo, entity.SermonSchema, published, logger,
		WithCheck(checkSermon))
}

func NewPosts(repo entity.Repository[models.BlogPost], logger *zap.Logger) *Posts {
	return NewResource[models.BlogPost, *models.BlogPost](repo, entity.BlogPostSchema, published, logger,
		WithCheck(checkPost), WithPrepare(stampAuthor))
}

func NewMinistries(repo entity.Repository[models.Ministry], logger *zap.Logger) *Ministries {
	return NewResource[models.Ministry, *models.Ministry](repo, entity.MinistrySchema, active, logger,
		WithCheck(checkMinistry))
}

func NewCategories(repo entity.Repository[models.Category], schema entity.Schema[models.Category], logger *zap.Logger) *Categories {
	return NewResource[models.Category, *models.Category](repo, schema, active, logger,
		WithCheck(checkCategory))
}

func required(fields map[string]string, name, value string) {
	if strings.TrimSpace(value) == "" {
		fields[name] = "required"
	}
}

func clockValid(s *string) bool {
	if s == nil || *s == "" {
		return true
	}
	v := *s
	return len(v) >= 5 && v[2] == ':' && v[0] >= '0' && v[0] <= '2' && v[1] >= '0' && v[1] <= '9' &&
		v[3] >= '0' && v[3] <= '5' && v[4] >= '0' && v[4] <= '9'
}

func checkEvent(e *models.Event) map[string]string {
	fields := map[string]string{}
	required(fields, "title", e.Title)
	if e.EventDate.IsZero() {
		fields["event_date"] = "required"
	}
	if !clockValid(e.StartTime) {
		fields["start_time"] = "must be HH:MM"
	}
	if !clockValid(e.EndTime) {
		fields["end_time"] = "must be HH:MM"
	}
	if e.MaxAttendees != nil && *e.MaxAttendees < 0 {
		fields["max_attendees"] = "must not be negative"
	}
	if e.CurrentAttendees < 0 {
		fields["current_attendees"] = "must not be negative"
	}
	return fields
}

func checkSermon(s *models.Sermon) map[string]string {
	fields := map[string]string{}
	required(fields, "title", s.Title)
	required(fields, "speaker", s.Speaker)
	if s.SermonDate.IsZero() {
		fields["sermon_date"] = "required"
	}
	if s.Duration < 0 {
		fields["duration"] = "must not be negative"
	}
	return fields
}

func checkPost(p *models.BlogPost) map[string]string {
	fields := map[string]string{}
	required(fields, "title", p.Title)
	required(fields, "content", p.Content)
	return fields
}

func checkMinistry(m *models.Ministry) map[string]string {
	fields := map[string]string{}
	required(fields, "name", m.Name)
	return fields
}

func checkCategory(c *models.Category) map[string]string {
	fields := map[string]string{}
	required(fields, "name", c.Name)
	return fields
}

// stampAuthor defaults a new post's author to the requester.
func stampAuthor(c *gin.Context, p *models.BlogPost) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return
	}
	if p.AuthorID == nil {
		id := claims.UserID
		p.AuthorID = &id
	}
	if p.AuthorName == "" {
		p.AuthorName = claims.DisplayName
	}
}
