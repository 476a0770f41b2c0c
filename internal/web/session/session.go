// Package session bridges the API's bearer tokens into browser cookies.
//
// The frontend never verifies token signatures; only the API holds the
// signing secret. The cookie token is decoded just to render the signed-in
// state, and every API call re-presents it for real validation.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the HttpOnly cookie carrying the API access token.
const CookieName = "JWToken"

// Principal is the signed-in user as rendered by the frontend.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

// IsAdmin reports whether the principal holds the Admin role.
func (p *Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == "Admin" {
			return true
		}
	}
	return false
}

// tokenClaims mirrors the API's access token claims.
type tokenClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Manager reads and writes the session cookie.
type Manager struct {
	secure bool
}

// NewManager creates a session manager. secure controls the cookie Secure flag.
func NewManager(secure bool) *Manager {
	return &Manager{secure: secure}
}

// Set stores the access token in the session cookie. The cookie lifetime
// mirrors the token's own expiry so both lapse together.
func (m *Manager) Set(w http.ResponseWriter, token string) error {
	claims, err := decode(token)
	if err != nil {
		return err
	}

	maxAge := 0
	if claims.ExpiresAt != nil {
		maxAge = int(time.Until(claims.ExpiresAt.Time).Seconds())
		if maxAge <= 0 {
			return fmt.Errorf("token already expired")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Clear deletes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Token returns the raw access token from the request, or "".
func (m *Manager) Token(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Principal decodes the session token into a display principal. Returns nil
// for a missing, unparsable, or expired token.
func (m *Manager) Principal(r *http.Request) *Principal {
	token := m.Token(r)
	if token == "" {
		return nil
	}

	claims, err := decode(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil
	}

	return &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}
}

// decode parses the token without verifying its signature.
func decode(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
