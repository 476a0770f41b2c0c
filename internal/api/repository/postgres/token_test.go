package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trongdv/bookstore/pkg/database"
	apperrors "github.com/trongdv/bookstore/pkg/errors"

	"github.com/trongdv/bookstore/internal/api/domain"
)

func newTokenTestFixture(t *testing.T) (*TokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewTokenRepository(mock)
	return repo, mock
}

func sampleToken() *domain.UserToken {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.UserToken{
		ID:        "tok-001",
		UserID:    "u-1234",
		Purpose:   domain.TokenPurposeEmailConfirm,
		TokenHash: "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899",
		ExpiresAt: now.Add(72 * time.Hour),
		CreatedAt: now,
	}
}

func TestTokenRepository_Create_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleToken()

	mock.ExpectExec("INSERT INTO user_tokens").
		WithArgs(tok.ID, tok.UserID, tok.Purpose, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), tok)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Consume_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleToken()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE user_tokens").
		WithArgs(now, tok.UserID, tok.Purpose, tok.TokenHash).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Consume(context.Background(), tok.UserID, tok.Purpose, tok.TokenHash, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A consumed, expired, or simply wrong token all match zero rows and are
// reported identically.
func TestTokenRepository_Consume_NoMatch(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleToken()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE user_tokens").
		WithArgs(now, tok.UserID, tok.Purpose, tok.TokenHash).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Consume(context.Background(), tok.UserID, tok.Purpose, tok.TokenHash, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC()

	mock.ExpectExec("DELETE FROM user_tokens").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
