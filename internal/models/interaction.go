package models

import (
	"time"

	"github.com/google/uuid"
)

// Namespace scopes likes and comments to one content type.
type Namespace string

const (
	NamespaceEvent    Namespace = "event"
	NamespaceBlogPost Namespace = "blog_post"
	NamespaceSermon   Namespace = "sermon"
)

// Valid reports whether ns is a known namespace.
func (ns Namespace) Valid() bool {
	switch ns {
	case NamespaceEvent, NamespaceBlogPost, NamespaceSermon:
		return true
	}
	return false
}

// Like records one identity liking one entity.
type Like struct {
	ID        uuid.UUID `json:"id"`
	EntityID  uuid.UUID `json:"entity_id"`
	UserID    string    `json:"user_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a user comment on an entity. Unapproved comments are hidden in
// moderated namespaces.
type Comment struct {
	ID         uuid.UUID `json:"id"`
	EntityID   uuid.UUID `json:"entity_id"`
	UserID     string    `json:"user_id,omitempty"`
	UserEmail  string    `json:"user_email,omitempty"`
	UserName   string    `json:"user_name"`
	Content    string    `json:"content"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}
