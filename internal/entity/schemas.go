package entity

import (
	"fmt"

	"github.com/lumen-church/backend/internal/models"
)

var EventSchema = Schema[models.Event]{
	Name:            "events",
	Table:           "events",
	StorageKey:      "church_events",
	PublishedColumn: "is_published",
	FeaturedColumn:  "is_featured",
	CategoryColumn:  "category_id",
	TypeColumn:      "type",
	DateColumn:      "event_date",
	Order:           "event_date ASC, start_time ASC NULLS LAST",
	Less: func(a, b *models.Event) bool {
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.Before(b.EventDate)
		}
		return clock(a.StartTime) < clock(b.StartTime)
	},
}

var SermonSchema = Schema[models.Sermon]{
	Name:            "sermons",
	Table:           "sermons",
	StorageKey:      "church_sermons",
	PublishedColumn: "is_published",
	FeaturedColumn:  "is_featured",
	CategoryColumn:  "category_id",
	DateColumn:      "sermon_date",
	Order:           "sermon_date DESC",
	Less: func(a, b *models.Sermon) bool {
		return b.SermonDate.Before(a.SermonDate)
	},
	Prepend: true,
}

var BlogPostSchema = Schema[models.BlogPost]{
	Name:            "blog_posts",
	Table:           "blog_posts",
	StorageKey:      "church_blog_posts",
	PublishedColumn: "is_published",
	FeaturedColumn:  "is_featured",
	CategoryColumn:  "category_id",
	AuthorColumn:    "author_id",
	DateColumn:      "published_at",
	Order:           "published_at DESC NULLS LAST, created_at DESC",
	Less: func(a, b *models.BlogPost) bool {
		switch {
		case a.PublishedAt == nil || b.PublishedAt == nil:
			return a.PublishedAt != nil && b.PublishedAt == nil
		case !a.PublishedAt.Equal(*b.PublishedAt):
			return a.PublishedAt.After(*b.PublishedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	},
	Prepend: true,
}

var MinistrySchema = Schema[models.Ministry]{
	Name:         "ministries",
	Table:        "ministries",
	StorageKey:   "church_ministries",
	ActiveColumn: "is_active",
	Order:        "display_order ASC, name ASC",
	Less: func(a, b *models.Ministry) bool {
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Name < b.Name
	},
}

// CategoryKinds are the content types that have a category table.
var CategoryKinds = []string{"blog", "event", "sermon"}

// CategorySchema returns the schema of the <kind>_categories table.
func CategorySchema(kind string) (Schema[models.Category], error) {
	switch kind {
	case "blog", "event", "sermon":
	default:
		return Schema[models.Category]{}, fmt.Errorf("unknown category kind %q", kind)
	}
	table := kind + "_categories"
	return Schema[models.Category]{
		Name:         table,
		Table:        table,
		StorageKey:   "church_" + table,
		ActiveColumn: "is_active",
		Order:        "display_order ASC, name ASC",
		Less: func(a, b *models.Category) bool {
			if a.DisplayOrder != b.DisplayOrder {
				return a.DisplayOrder < b.DisplayOrder
			}
			return a.Name < b.Name
		},
	}, nil
}

func clock(s *string) string {
	if s == nil {
		return "99:99"
	}
	return *s
}
