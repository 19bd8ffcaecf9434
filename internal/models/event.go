package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType is the enumerated tag of an event.
type EventType string

const (
	EventTypeService    EventType = "service"
	EventTypeStudy      EventType = "study"
	EventTypeYouth      EventType = "youth"
	EventTypePrayer     EventType = "prayer"
	EventTypeOutreach   EventType = "outreach"
	EventTypeConference EventType = "conference"
	EventTypeSocial     EventType = "social"
	EventTypeOther      EventType = "other"
)

// Event is a scheduled church activity. CurrentAttendees only grows through
// registrations; MaxAttendees, when set, is a soft cap checked at RSVP time.
type Event struct {
	Meta             `gorm:"embedded"`
	Slug             string                      `json:"slug" gorm:"column:slug"`
	Title            string                      `json:"title" gorm:"column:title"`
	Description      string                      `json:"description" gorm:"column:description"`
	EventDate        Date                        `json:"event_date" gorm:"column:event_date"`
	StartTime        *string                     `json:"start_time,omitempty" gorm:"column:start_time"`
	EndTime          *string                     `json:"end_time,omitempty" gorm:"column:end_time"`
	Location         string                      `json:"location" gorm:"column:location"`
	Address          string                      `json:"address" gorm:"column:address"`
	City             string                      `json:"city" gorm:"column:city"`
	Type             EventType                   `json:"type" gorm:"column:type"`
	CategoryID       *uuid.UUID                  `json:"category_id,omitempty" gorm:"column:category_id;type:uuid"`
	MaxAttendees     *int                        `json:"max_attendees,omitempty" gorm:"column:max_attendees"`
	CurrentAttendees int                         `json:"current_attendees" gorm:"column:current_attendees"`
	RequiresRSVP     bool                        `json:"requires_rsvp" gorm:"column:requires_rsvp"`
	IsPublished      bool                        `json:"is_published" gorm:"column:is_published"`
	IsFeatured       bool                        `json:"is_featured" gorm:"column:is_featured"`
	ImageURL         string                      `json:"image_url" gorm:"column:image_url"`
	Tags             datatypes.JSONSlice[string] `json:"tags" gorm:"column:tags"`
}

func (e *Event) RowSlug() string { return e.Slug }

func (e *Event) PrepareInsert() {
	if e.Slug == "" {
		e.Slug = Slugify(e.Title)
	}
	if e.Type == "" {
		e.Type = EventTypeOther
	}
	if e.CurrentAttendees < 0 {
		e.CurrentAttendees = 0
	}
	if e.Tags == nil {
		e.Tags = datatypes.JSONSlice[string]{}
	}
}

func (e *Event) Matches(opts ListOptions) bool {
	return matchBool(opts.Published, e.IsPublished) &&
		matchBool(opts.Featured, e.IsFeatured) &&
		matchUUID(opts.Category, e.CategoryID) &&
		(opts.Type == "" || string(e.Type) == opts.Type) &&
		matchDate(opts, e.EventDate)
}

// RemainingCapacity returns the free seats, or -1 when the event is uncapped.
func (e *Event) RemainingCapacity() int {
	if e.MaxAttendees == nil {
		return -1
	}
	if left := *e.MaxAttendees - e.CurrentAttendees; left > 0 {
		return left
	}
	return 0
}

// CalendarEntry is the plain object handed to calendar and sharing exporters.
type CalendarEntry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Location    string    `json:"location"`
}

// CalendarEntry builds the export object. Missing start times default to
// 09:00 and missing end times to two hours after start.
func (e *Event) CalendarEntry(loc *time.Location) CalendarEntry {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := e.EventDate.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	start := day.Add(9 * time.Hour)
	if e.StartTime != nil {
		if off, ok := clockOffset(*e.StartTime); ok {
			start = day.Add(off)
		}
	}
	end := start.Add(2 * time.Hour)
	if e.EndTime != nil {
		if off, ok := clockOffset(*e.EndTime); ok && day.Add(off).After(start) {
			end = day.Add(off)
		}
	}
	where := e.Location
	if extra := strings.TrimSpace(strings.Join(nonEmpty(e.Address, e.City), ", ")); extra != "" {
		if where != "" {
			where += ", "
		}
		where += extra
	}
	return CalendarEntry{
		Title:       e.Title,
		Description: e.Description,
		StartDate:   start,
		EndDate:     end,
		Location:    where,
	}
}

func clockOffset(s string) (time.Duration, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
