package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BlogPost is an article in the church blog.
type BlogPost struct {
	Meta            `gorm:"embedded"`
	Slug            string                      `json:"slug" gorm:"column:slug"`
	Title           string                      `json:"title" gorm:"column:title"`
	Content         string                      `json:"content" gorm:"column:content"`
	Excerpt         string                      `json:"excerpt" gorm:"column:excerpt"`
	CategoryID      *uuid.UUID                  `json:"category_id,omitempty" gorm:"column:category_id;type:uuid"`
	AuthorID        *uuid.UUID                  `json:"author_id,omitempty" gorm:"column:author_id;type:uuid"`
	AuthorName      string                      `json:"author_name" gorm:"column:author_name"`
	ImageURL        string                      `json:"image_url" gorm:"column:image_url"`
	IsPublished     bool                        `json:"is_published" gorm:"column:is_published"`
	IsFeatured      bool                        `json:"is_featured" gorm:"column:is_featured"`
	PublishedAt     *time.Time                  `json:"published_at,omitempty" gorm:"column:published_at"`
	ViewCount       int                         `json:"view_count" gorm:"column:view_count"`
	LikeCount       int                         `json:"like_count" gorm:"column:like_count"`
	CommentCount    int                         `json:"comment_count" gorm:"column:comment_count"`
	MetaTitle       string                      `json:"meta_title" gorm:"column:meta_title"`
	MetaDescription string                      `json:"meta_description" gorm:"column:meta_description"`
	Tags            datatypes.JSONSlice[string] `json:"tags" gorm:"column:tags"`
}

func (p *BlogPost) RowSlug() string { return p.Slug }

func (p *BlogPost) PrepareInsert() {
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	p.ViewCount, p.LikeCount, p.CommentCount = 0, 0, 0
	if p.IsPublished && p.PublishedAt == nil {
		now := time.Now().UTC()
		p.PublishedAt = &now
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
}

func (p *BlogPost) Matches(opts ListOptions) bool {
	if opts.DateFrom != nil || opts.DateTo != nil {
		if p.PublishedAt == nil {
			return false
		}
		y, m, d := p.PublishedAt.Date()
		if !matchDate(opts, NewDate(y, m, d)) {
			return false
		}
	}
	return matchBool(opts.Published, p.IsPublished) &&
		matchBool(opts.Featured, p.IsFeatured) &&
		matchUUID(opts.Category, p.CategoryID) &&
		matchUUID(opts.Author, p.AuthorID)
}
