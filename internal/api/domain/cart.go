package domain

import "time"

// CartItem is a single book line in a user's cart.
type CartItem struct {
	BookID   int64   `json:"book_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns price times quantity for the line.
func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Cart is a user's shopping cart, stored in Redis keyed by user ID.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TotalQuantity sums quantities across all lines.
func (c *Cart) TotalQuantity() int {
	var total int
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalAmount sums line subtotals.
func (c *Cart) TotalAmount() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// Find returns the line for the given book, or nil.
func (c *Cart) Find(bookID int64) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].BookID == bookID {
			return &c.Items[idx]
		}
	}
	return nil
}
