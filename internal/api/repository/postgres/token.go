package postgres

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/trongdv/bookstore/pkg/errors"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool DB
}

// NewTokenRepository creates a new PostgreSQL-backed token repository.
func NewTokenRepository(pool DB) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Create stores a new single-use token.
func (r *TokenRepository) Create(ctx context.Context, t *domain.UserToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.Purpose, t.TokenHash, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user token: %w", err)
	}
	return nil
}

// Consume marks the matching token as used. The WHERE clause makes the
// operation atomic: a second call with the same token matches zero rows, so
// replays fail exactly like wrong or expired tokens.
func (r *TokenRepository) Consume(ctx context.Context, userID string, purpose domain.TokenPurpose, tokenHash string, now time.Time) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE user_tokens
		SET consumed_at = $1
		WHERE user_id = $2
		  AND purpose = $3
		  AND token_hash = $4
		  AND consumed_at IS NULL
		  AND expires_at > $1`,
		now.UTC(), userID, purpose, tokenHash,
	)
	if err != nil {
		return fmt.Errorf("consume user token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("token", tokenHash[:8])
	}
	return nil
}

// DeleteExpired removes tokens past their expiry, returning the count.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM user_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}
