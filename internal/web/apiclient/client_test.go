package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// capturedRequest records what the client actually put on the wire.
type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

func newCaptureServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Query = r.URL.Query()
		captured.Header = r.Header.Clone()
		captured.Body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestResetPasswordQueryParameters(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, `{"message":"Password reset successfully"}`)
	c := New(srv.URL, newTestLogger())

	err := c.ResetPassword(context.Background(), "user-123", "the-code", "brand-new-password")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/api/home/reset-password", captured.Path)
	assert.Equal(t, "user-123", captured.Query.Get("userId"))
	assert.Equal(t, "the-code", captured.Query.Get("code"))
	assert.Equal(t, "brand-new-password", captured.Query.Get("password"))
}

func TestCheckoutSendsShippingDetails(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK,
		`{"order":{"id":7,"status":"pending"},"payment_url":""}`)
	c := New(srv.URL, newTestLogger())

	result, err := c.Checkout(context.Background(), "the-token", CheckoutForm{
		Name:          "Alice Nguyen",
		Email:         "alice@example.com",
		Mobile:        "0901234567",
		Address:       "1 Hang Bong, Hanoi",
		PaymentMethod: "cod",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Order.ID)

	assert.Equal(t, "Bearer the-token", captured.Header.Get("Authorization"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(captured.Body, &body))
	assert.Equal(t, "Alice Nguyen", body["name"])
	assert.Equal(t, "0901234567", body["mobile"])
	assert.Equal(t, "1 Hang Bong, Hanoi", body["address"])
	assert.Equal(t, "cod", body["paymentMethod"])
}

func TestLoginTranslatesErrorEnvelope(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusUnauthorized,
		`{"code":"UNAUTHORIZED","message":"invalid email or password"}`)
	c := New(srv.URL, newTestLogger())

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}
