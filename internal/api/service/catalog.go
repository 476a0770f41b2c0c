package service

import (
	"context"
	"log/slog"

	"github.com/trongdv/bookstore/pkg/pagination"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/repository"
)

// CatalogService exposes the book catalog.
type CatalogService struct {
	bookRepo repository.BookRepository
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(bookRepo repository.BookRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		bookRepo: bookRepo,
		logger:   logger,
	}
}

// ListBooks returns books matching the filter as a paginated result.
func (s *CatalogService) ListBooks(ctx context.Context, filter domain.BookFilter, params pagination.Params) (*pagination.Result[domain.Book], error) {
	books, total, err := s.bookRepo.List(ctx, filter, params)
	if err != nil {
		return nil, err
	}
	result := pagination.NewResult(books, total, params)
	return &result, nil
}

// GetBook returns a single book.
func (s *CatalogService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	return s.bookRepo.GetByID(ctx, id)
}

// ListGenres returns all genres.
func (s *CatalogService) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	return s.bookRepo.ListGenres(ctx)
}
