package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Sermon is a preached message with optional media.
type Sermon struct {
	Meta         `gorm:"embedded"`
	Slug         string                      `json:"slug" gorm:"column:slug"`
	Title        string                      `json:"title" gorm:"column:title"`
	Speaker      string                      `json:"speaker" gorm:"column:speaker"`
	SermonDate   Date                        `json:"sermon_date" gorm:"column:sermon_date"`
	Series       string                      `json:"series" gorm:"column:series"`
	Scripture    string                      `json:"scripture" gorm:"column:scripture"`
	Description  string                      `json:"description" gorm:"column:description"`
	AudioURL     *string                     `json:"audio_url,omitempty" gorm:"column:audio_url"`
	VideoURL     *string                     `json:"video_url,omitempty" gorm:"column:video_url"`
	Transcript   *string                     `json:"transcript,omitempty" gorm:"column:transcript"`
	Duration     int                         `json:"duration" gorm:"column:duration"`
	ViewCount    int                         `json:"view_count" gorm:"column:view_count"`
	LikeCount    int                         `json:"like_count" gorm:"column:like_count"`
	CommentCount int                         `json:"comment_count" gorm:"column:comment_count"`
	CategoryID   *uuid.UUID                  `json:"category_id,omitempty" gorm:"column:category_id;type:uuid"`
	IsPublished  bool                        `json:"is_published" gorm:"column:is_published"`
	IsFeatured   bool                        `json:"is_featured" gorm:"column:is_featured"`
	Tags         datatypes.JSONSlice[string] `json:"tags" gorm:"column:tags"`
}

func (s *Sermon) RowSlug() string { return s.Slug }

func (s *Sermon) PrepareInsert() {
	if s.Slug == "" {
		s.Slug = Slugify(s.Title)
	}
	s.ViewCount, s.LikeCount, s.CommentCount = 0, 0, 0
	if s.Tags == nil {
		s.Tags = datatypes.JSONSlice[string]{}
	}
}

func (s *Sermon) Matches(opts ListOptions) bool {
	return matchBool(opts.Published, s.IsPublished) &&
		matchBool(opts.Featured, s.IsFeatured) &&
		matchUUID(opts.Category, s.CategoryID) &&
		matchDate(opts, s.SermonDate)
}
