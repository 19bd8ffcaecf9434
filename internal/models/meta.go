package models

import (
	"time"

	"github.com/google/uuid"
)

// Meta holds the server-assigned fields every persisted row carries.
// Version starts at 1 and is incremented on every successful update.
type Meta struct {
	ID        uuid.UUID `json:"id" gorm:"column:id;type:uuid;primaryKey"`
	Version   int64     `json:"version" gorm:"column:version"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// RowMeta returns the embedded metadata for in-place stamping.
func (m *Meta) RowMeta() *Meta { return m }

// Stamp initializes a new row: fresh id, version 1, both timestamps now.
func (m *Meta) Stamp(now time.Time) {
	m.ID = uuid.New()
	m.Version = 1
	m.CreatedAt = now
	m.UpdatedAt = now
}

// Touch bumps the version and moves UpdatedAt forward. UpdatedAt is
// guaranteed to be strictly greater than its previous value.
func (m *Meta) Touch(now time.Time) {
	if !now.After(m.UpdatedAt) {
		now = m.UpdatedAt.Add(time.Microsecond)
	}
	m.UpdatedAt = now
	m.Version++
}

// Entity is implemented by pointers to every cached row type.
type Entity interface {
	RowMeta() *Meta
	RowSlug() string
	// Matches applies list options in memory (local backend).
	Matches(opts ListOptions) bool
	// PrepareInsert fills entity defaults: counters reset, slug derived.
	PrepareInsert()
}
