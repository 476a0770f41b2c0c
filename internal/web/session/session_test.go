package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signToken builds a token the way the API does. The signing key is
// irrelevant here since the frontend never verifies signatures.
func signToken(t *testing.T, email string, roles []string, expiresIn time.Duration) string {
	t.Helper()
	claims := &tokenClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return token
}

func TestSetCookieFlags(t *testing.T) {
	m := NewManager(true)
	rec := httptest.NewRecorder()

	err := m.Set(rec, signToken(t, "alice@example.com", nil, time.Hour))
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	// MaxAge mirrors the token expiry.
	assert.InDelta(t, 3600, c.MaxAge, 5)
}

func TestSetRejectsExpiredToken(t *testing.T) {
	m := NewManager(false)
	rec := httptest.NewRecorder()

	err := m.Set(rec, signToken(t, "alice@example.com", nil, -time.Minute))
	require.Error(t, err)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSetRejectsGarbage(t *testing.T) {
	m := NewManager(false)
	rec := httptest.NewRecorder()

	err := m.Set(rec, "not-a-jwt")
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	m := NewManager(false)
	rec := httptest.NewRecorder()

	m.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestPrincipalDecodesClaims(t *testing.T) {
	m := NewManager(false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{
		Name:  CookieName,
		Value: signToken(t, "alice@example.com", []string{"Admin", "User"}, time.Hour),
	})

	p := m.Principal(req)
	require.NotNil(t, p)
	assert.Equal(t, "user-123", p.UserID)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.True(t, p.IsAdmin())
}

func TestPrincipalNilWithoutCookie(t *testing.T) {
	m := NewManager(false)

	p := m.Principal(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, p)
}

func TestPrincipalNilForExpiredToken(t *testing.T) {
	m := NewManager(false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{
		Name:  CookieName,
		Value: signToken(t, "alice@example.com", nil, -time.Minute),
	})

	assert.Nil(t, m.Principal(req))
}

func TestTokenReturnsRawCookieValue(t *testing.T) {
	m := NewManager(false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "raw-token"})

	assert.Equal(t, "raw-token", m.Token(req))
}
