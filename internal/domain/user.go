package domain

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role represents a user's profile in the portal.
type Role string

// Roles.
const (
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

var roleLevel = map[Role]int{
	RoleReader: 1,
	RoleAdmin:  2,
}

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := roleLevel[r]
	return ok
}

// HasPermission reports whether r grants at least the permissions of required.
func (r Role) HasPermission(required Role) bool {
	level, ok := roleLevel[r]
	if !ok {
		return false
	}
	return level >= roleLevel[required]
}

// DisplayName returns a human readable role name.
func (r Role) DisplayName() string {
	return cases.Title(language.English).String(string(r))
}

// User represents a portal account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
