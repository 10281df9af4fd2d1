// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the system.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleEditor      Role = "editor"
	RoleAuthor      Role = "author"
	RoleContributor Role = "contributor"
	RoleSubscriber  Role = "subscriber"
)

// Capability names a single permission checked by handlers and features.
type Capability string

const (
	CapRead            Capability = "read"
	CapEditPosts       Capability = "edit_posts"
	CapPublishPosts    Capability = "publish_posts"
	CapEditOthersPosts Capability = "edit_others_posts"
	CapManageUsers     Capability = "manage_users"
)

// roleCaps maps each role to the capabilities it grants.
var roleCaps = map[Role][]Capability{
	RoleAdmin:       {CapRead, CapEditPosts, CapPublishPosts, CapEditOthersPosts, CapManageUsers},
	RoleEditor:      {CapRead, CapEditPosts, CapPublishPosts, CapEditOthersPosts},
	RoleAuthor:      {CapRead, CapEditPosts, CapPublishPosts},
	RoleContributor: {CapRead, CapEditPosts},
	RoleSubscriber:  {CapRead},
}

// Can reports whether the role grants want. Unknown roles grant nothing.
func (r Role) Can(want Capability) bool {
	for _, c := range roleCaps[r] {
		if c == want {
			return true
		}
	}
	return false
}

// User represents a CMS user with authentication and 2FA fields.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize the hash
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	TOTPSecret   *string   `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Can reports whether the user holds want. A nil user is anonymous and
// holds nothing.
func (u *User) Can(want Capability) bool {
	if u == nil {
		return false
	}
	return u.Role.Can(want)
}

// Needs2FASetup reports whether the user has yet to confirm a TOTP code.
// A stored but unconfirmed secret still counts as not enrolled.
func (u *User) Needs2FASetup() bool {
	return !u.TOTPEnabled
}
