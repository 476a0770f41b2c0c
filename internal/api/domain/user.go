package domain

import (
	"slices"
	"time"
)

// Role names assignable to users.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User represents a registered account.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Roles          []string  `json:"roles"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IsActive reports whether the account may sign in. An account becomes active
// once its email address has been confirmed.
func (u *User) IsActive() bool {
	return u.EmailConfirmed
}
