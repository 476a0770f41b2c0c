package domain

import "time"

// TokenPurpose distinguishes the single-use token flows.
type TokenPurpose string

const (
	TokenPurposeEmailConfirm  TokenPurpose = "email_confirm"
	TokenPurposePasswordReset TokenPurpose = "password_reset"
)

// UserToken is a stored single-use token for email confirmation or password
// reset. Only the SHA-256 hash of the token is persisted; the raw value is
// handed to the user exactly once, inside the emailed link.
type UserToken struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Purpose    TokenPurpose `json:"purpose"`
	TokenHash  string       `json:"-"`
	ExpiresAt  time.Time    `json:"expires_at"`
	CreatedAt  time.Time    `json:"created_at"`
	ConsumedAt *time.Time   `json:"consumed_at,omitempty"`
}

// Principal is the authenticated caller attached to a request context after
// bearer token validation.
type Principal struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

// HasRole reports whether the principal holds the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
