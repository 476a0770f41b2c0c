// Package apiclient is the typed HTTP client the web frontend uses to call
// the bookstore API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/trongdv/bookstore/pkg/httpclient"
)

const serviceName = "bookstore-api"

// Client calls the bookstore API through a retrying, circuit-broken HTTP
// client. Authenticated calls take the caller's access token and present it
// as a bearer header.
type Client struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// New creates an API client for the given base URL.
func New(baseURL string, logger *slog.Logger) *Client {
	inner := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(inner, httpclient.DefaultCircuitBreakerConfig(serviceName), logger)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cb,
		logger:  logger,
	}
}

// LoginResult is the API's login response.
type LoginResult struct {
	Successful  bool   `json:"successful"`
	AccessToken string `json:"accessToken"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("password", password)

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/home/login?"+q.Encode(), "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account. clientURL is where the emailed confirmation
// link should land, i.e. this frontend's confirm-email page.
func (c *Client) Register(ctx context.Context, email, password, clientURL string) error {
	q := url.Values{}
	q.Set("Email", email)
	q.Set("Password", password)
	q.Set("ClientUrl", clientURL)

	return c.do(ctx, http.MethodPost, "/api/home/register?"+q.Encode(), "", nil, nil)
}

// ConfirmEmail confirms an account from an emailed link.
func (c *Client) ConfirmEmail(ctx context.Context, userID, code string) error {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("code", code)

	return c.do(ctx, http.MethodGet, "/api/home/confirm-email?"+q.Encode(), "", nil, nil)
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email, clientURL string) error {
	q := url.Values{}
	q.Set("Email", email)
	q.Set("ClientUrl", clientURL)

	return c.do(ctx, http.MethodPost, "/api/home/forgot-password?"+q.Encode(), "", nil, nil)
}

// ResetPassword sets a new password using an emailed reset code.
func (c *Client) ResetPassword(ctx context.Context, userID, code, newPassword string) error {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("code", code)
	q.Set("password", newPassword)

	return c.do(ctx, http.MethodPost, "/api/home/reset-password?"+q.Encode(), "", nil, nil)
}

// Book is a catalog item as returned by the API.
type Book struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Author    string  `json:"author"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	GenreID   int64   `json:"genre_id"`
	GenreName string  `json:"genre_name"`
}

// Genre is a book category.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BookPage is one page of catalog results.
type BookPage struct {
	Data       []Book `json:"data"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
}

// BookList is the catalog listing with the active filter echoed back.
type BookList struct {
	Books      BookPage `json:"books"`
	Genres     []Genre  `json:"genres"`
	SearchTerm string   `json:"sterm"`
	GenreID    int64    `json:"genre_id"`
}

// GetBooks lists the catalog.
func (c *Client) GetBooks(ctx context.Context, sterm string, genreID int64, page int) (*BookList, error) {
	q := url.Values{}
	if sterm != "" {
		q.Set("sterm", sterm)
	}
	if genreID > 0 {
		q.Set("genreId", strconv.FormatInt(genreID, 10))
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}

	var list BookList
	if err := c.do(ctx, http.MethodGet, "/api/home/books?"+q.Encode(), "", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CartItem is one line of the cart.
type CartItem struct {
	BookID   int64   `json:"book_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// Cart is the user's shopping cart.
type Cart struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}

// TotalAmount sums line subtotals.
func (c *Cart) TotalAmount() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// GetCart fetches the caller's cart.
func (c *Client) GetCart(ctx context.Context, token string) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart", token, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// CartCount returns the number of items in the caller's cart.
func (c *Client) CartCount(ctx context.Context, token string) (int, error) {
	var resp struct {
		Count int `json:"cartItemCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cart/count", token, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// AddCartItem adds a book to the caller's cart.
func (c *Client) AddCartItem(ctx context.Context, token string, bookID int64, qty int) error {
	q := url.Values{}
	q.Set("bookId", strconv.FormatInt(bookID, 10))
	q.Set("qty", strconv.Itoa(qty))

	return c.do(ctx, http.MethodPost, "/api/cart/items?"+q.Encode(), token, nil, nil)
}

// RemoveCartItem decrements a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, token string, bookID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cart/items/%d", bookID), token, nil, nil)
}

// Order is a placed order.
type Order struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
	TotalAmount   float64 `json:"total_amount"`
	TotalQuantity int     `json:"total_quantity"`
	CreatedAt     string  `json:"created_at"`
}

// CheckoutResult is the API's checkout response.
type CheckoutResult struct {
	Order      Order  `json:"order"`
	PaymentURL string `json:"payment_url"`
}

// CheckoutForm carries the shipping details and payment selection submitted
// at checkout.
type CheckoutForm struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Mobile        string `json:"mobile"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
}

// Checkout places an order from the caller's cart. For VnPay the result
// carries the gateway redirect URL.
func (c *Client) Checkout(ctx context.Context, token string, form CheckoutForm) (*CheckoutResult, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	var result CheckoutResult
	if err := c.do(ctx, http.MethodPost, "/api/cart/checkout", token, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MyOrders lists the caller's orders.
func (c *Client) MyOrders(ctx context.Context, token string) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", token, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// do issues a request and decodes a 2xx JSON response into out (when non-nil).
// Non-2xx responses are translated into AppErrors preserving the API's codes.
func (c *Client) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, serviceName)
	}

	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
