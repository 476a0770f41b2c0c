package repository

import (
	"context"
	"time"

	"github.com/trongdv/bookstore/pkg/pagination"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user with their initial roles.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user and their roles by identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user and their roles by email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetEmailConfirmed marks the user's email as confirmed.
	SetEmailConfirmed(ctx context.Context, id string) error

	// UpdatePassword replaces the user's password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// TokenRepository stores single-use email confirmation and password reset
// tokens. Tokens are persisted by hash only.
type TokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *domain.UserToken) error

	// Consume atomically marks the matching unconsumed, unexpired token as
	// used. Returns ErrNotFound when no such token exists, which covers
	// wrong values, expired tokens, and replays alike.
	Consume(ctx context.Context, userID string, purpose domain.TokenPurpose, tokenHash string, now time.Time) error

	// DeleteExpired removes tokens past their expiry, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// BookRepository defines catalog persistence operations.
type BookRepository interface {
	// List returns books matching the filter, newest first, with the total
	// count for pagination.
	List(ctx context.Context, filter domain.BookFilter, params pagination.Params) ([]domain.Book, int, error)

	// GetByID retrieves a single book with its genre name.
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// ListGenres returns all genres ordered by name.
	ListGenres(ctx context.Context) ([]domain.Genre, error)

	// GetStock returns the available quantity for a book.
	GetStock(ctx context.Context, bookID int64) (*domain.Stock, error)
}

// OrderRepository defines order persistence operations.
type OrderRepository interface {
	// Create inserts the order and its lines and decrements stock for each
	// line in a single transaction. Fails with ErrInvalidInput when any
	// line exceeds available stock.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order with its lines.
	GetByID(ctx context.Context, id int64) (*domain.Order, error)

	// ListByUserID returns a user's orders, newest first.
	ListByUserID(ctx context.Context, userID string) ([]domain.Order, error)

	// List returns all orders for the admin view, newest first, with the
	// total count for pagination.
	List(ctx context.Context, params pagination.Params) ([]domain.Order, int, error)

	// UpdateStatus transitions the order to the given status. MarkPaid
	// additionally records the payment time.
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) error
}

// CartRepository stores shopping carts keyed by user ID.
type CartRepository interface {
	// Get returns the user's cart, or an empty cart when none exists.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists the cart, refreshing its TTL.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the cart entirely.
	Delete(ctx context.Context, userID string) error
}
