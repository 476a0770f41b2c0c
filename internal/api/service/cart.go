package service

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/trongdv/bookstore/pkg/errors"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/repository"
)

// CartService implements shopping cart business logic.
type CartService struct {
	cartRepo repository.CartRepository
	bookRepo repository.BookRepository
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	cartRepo repository.CartRepository,
	bookRepo repository.BookRepository,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		cartRepo: cartRepo,
		bookRepo: bookRepo,
		logger:   logger,
	}
}

// GetCart returns the user's cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.cartRepo.Get(ctx, userID)
}

// AddItem adds a book to the cart, or increases its quantity when the line
// already exists. The snapshot of name, price, and image is taken from the
// catalog at add time.
func (s *CartService) AddItem(ctx context.Context, userID string, bookID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be at least 1")
	}

	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	stock, err := s.bookRepo.GetStock(ctx, bookID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	wanted := quantity
	if item := cart.Find(bookID); item != nil {
		wanted += item.Quantity
	}
	if wanted > stock.Quantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf("only %d of %q in stock", stock.Quantity, book.Name))
	}

	if item := cart.Find(bookID); item != nil {
		item.Quantity = wanted
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			BookID:   book.ID,
			Name:     book.Name,
			Price:    book.Price,
			Image:    book.Image,
			Quantity: quantity,
		})
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem decreases a line's quantity by one, dropping the line at zero.
func (s *CartService) RemoveItem(ctx context.Context, userID string, bookID int64) (*domain.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := cart.Find(bookID)
	if item == nil {
		return nil, apperrors.NotFound("cart item", fmt.Sprint(bookID))
	}

	item.Quantity--
	if item.Quantity <= 0 {
		kept := cart.Items[:0]
		for _, it := range cart.Items {
			if it.BookID != bookID {
				kept = append(kept, it)
			}
		}
		cart.Items = kept
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear removes the cart entirely.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.cartRepo.Delete(ctx, userID)
}
