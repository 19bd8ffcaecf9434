package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a site role. Permissions derive from it.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePastor Role = "pastor"
	RoleEditor Role = "editor"
	RoleLeader Role = "leader"
	RoleMember Role = "member"
	RoleUser   Role = "user"
)

// Permission names an administrative capability.
type Permission string

const (
	PermContentWrite     Permission = "content:write"
	PermEventsWrite      Permission = "events:write"
	PermSermonsWrite     Permission = "sermons:write"
	PermMinistriesWrite  Permission = "ministries:write"
	PermCommentsModerate Permission = "comments:moderate"
	PermUsersManage      Permission = "users:manage"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermContentWrite, PermEventsWrite, PermSermonsWrite,
		PermMinistriesWrite, PermCommentsModerate, PermUsersManage,
	},
	RolePastor: {PermContentWrite, PermEventsWrite, PermSermonsWrite, PermMinistriesWrite, PermCommentsModerate},
	RoleEditor: {PermContentWrite, PermCommentsModerate},
	RoleLeader: {PermEventsWrite, PermMinistriesWrite},
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RolePastor, RoleEditor, RoleLeader, RoleMember, RoleUser:
		return r, true
	}
	return "", false
}

// Can reports whether the role grants p.
func (r Role) Can(p Permission) bool {
	for _, have := range rolePermissions[r] {
		if have == p {
			return true
		}
	}
	return false
}

// User is a site account.
type User struct {
	ID          uuid.UUID    `json:"id"`
	Email       string       `json:"email"`
	Password    string       `json:"-"`
	DisplayName string       `json:"display_name"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Can reports whether the user's role or extra grants include p.
func (u *User) Can(p Permission) bool {
	if u.Role.Can(p) {
		return true
	}
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Identity returns the identity the auth layer hands to the core.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID.String(), Email: u.Email, DisplayName: u.DisplayName, Role: u.Role}
}

// Identity is the current requester as supplied by the authentication layer.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Owns reports whether a record authored by (userID, email) belongs to this
// identity. Ids are compared when both sides have one, emails otherwise.
func (i *Identity) Owns(userID, email string) bool {
	if i == nil {
		return false
	}
	if i.ID != "" && userID != "" {
		return i.ID == userID
	}
	return i.Email != "" && strings.EqualFold(i.Email, email)
}

// Name returns a display name, falling back to the email's local part.
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if at := strings.IndexByte(i.Email, '@'); at > 0 {
		return i.Email[:at]
	}
	return "Anonymous"
}
