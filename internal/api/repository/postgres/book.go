package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/trongdv/bookstore/pkg/errors"
	"github.com/trongdv/bookstore/pkg/pagination"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// BookRepository implements repository.BookRepository using PostgreSQL.
type BookRepository struct {
	pool DB
}

// NewBookRepository creates a new PostgreSQL-backed catalog repository.
func NewBookRepository(pool DB) *BookRepository {
	return &BookRepository{pool: pool}
}

// List returns books matching the filter with the total count for pagination.
func (r *BookRepository) List(ctx context.Context, filter domain.BookFilter, params pagination.Params) ([]domain.Book, int, error) {
	where := "WHERE 1=1"
	args := []any{}

	if filter.SearchTerm != "" {
		args = append(args, "%"+filter.SearchTerm+"%")
		where += " AND b.name ILIKE $" + strconv.Itoa(len(args))
	}
	if filter.GenreID > 0 {
		args = append(args, filter.GenreID)
		where += " AND b.genre_id = $" + strconv.Itoa(len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM books b " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	args = append(args, params.PerPage, params.Offset)
	query := fmt.Sprintf(`
		SELECT b.id, b.name, b.author, b.price, b.image, b.genre_id, g.name, b.created_at, b.updated_at
		FROM books b
		JOIN genres g ON g.id = b.genre_id
		%s
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(
			&b.ID, &b.Name, &b.Author, &b.Price, &b.Image,
			&b.GenreID, &b.GenreName, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate books: %w", err)
	}

	return books, total, nil
}

// GetByID retrieves a single book with its genre name.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	err := r.pool.QueryRow(ctx, `
		SELECT b.id, b.name, b.author, b.price, b.image, b.genre_id, g.name, b.created_at, b.updated_at
		FROM books b
		JOIN genres g ON g.id = b.genre_id
		WHERE b.id = $1`, id,
	).Scan(
		&b.ID, &b.Name, &b.Author, &b.Price, &b.Image,
		&b.GenreID, &b.GenreName, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("query book: %w", err)
	}
	return &b, nil
}

// ListGenres returns all genres ordered by name.
func (r *BookRepository) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM genres ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query genres: %w", err)
	}
	defer rows.Close()

	var genres []domain.Genre
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genres: %w", err)
	}

	return genres, nil
}

// GetStock returns the available quantity for a book.
func (r *BookRepository) GetStock(ctx context.Context, bookID int64) (*domain.Stock, error) {
	var s domain.Stock
	err := r.pool.QueryRow(ctx,
		`SELECT book_id, quantity FROM stocks WHERE book_id = $1`, bookID,
	).Scan(&s.BookID, &s.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("stock", strconv.FormatInt(bookID, 10))
		}
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &s, nil
}
