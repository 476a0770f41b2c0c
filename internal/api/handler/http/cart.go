package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/trongdv/bookstore/pkg/httputil"
	"github.com/trongdv/bookstore/pkg/validator"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/service"
)

// CartHandler serves the authenticated cart and checkout endpoints.
type CartHandler struct {
	cartService     *service.CartService
	checkoutService *service.CheckoutService
	logger          *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(cartService *service.CartService, checkoutService *service.CheckoutService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		cartService:     cartService,
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	cart, err := h.cartService.GetCart(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cart)
}

// GetCount handles GET /api/cart/count
func (h *CartHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	cart, err := h.cartService.GetCart(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"cartItemCount": cart.TotalQuantity()})
}

// AddItem handles POST /api/cart/items?bookId=&qty=
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	bookID, err := strconv.ParseInt(r.URL.Query().Get("bookId"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid book id",
		})
		return
	}
	qty := 1
	if s := r.URL.Query().Get("qty"); s != "" {
		if qty, err = strconv.Atoi(s); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Code: "INVALID_INPUT", Message: "invalid quantity",
			})
			return
		}
	}

	cart, err := h.cartService.AddItem(r.Context(), principal.UserID, bookID, qty)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"cartItemCount": cart.TotalQuantity()})
}

// RemoveItem handles DELETE /api/cart/items/{bookId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	bookID, err := strconv.ParseInt(pathParam(r, "bookId"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid book id",
		})
		return
	}

	cart, err := h.cartService.RemoveItem(r.Context(), principal.UserID, bookID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"cartItemCount": cart.TotalQuantity()})
}

// CheckoutRequest is the JSON body for POST /api/cart/checkout. The contact
// fields become the order's shipping details.
type CheckoutRequest struct {
	Name          string `json:"name" validate:"required,max=128"`
	Email         string `json:"email" validate:"required,email"`
	Mobile        string `json:"mobile" validate:"required,max=32"`
	Address       string `json:"address" validate:"required,max=512"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cod vnpay"`
}

// Checkout handles POST /api/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid request body",
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.checkoutService.Checkout(r.Context(), principal.UserID,
		service.CheckoutInput{
			Name:          req.Name,
			Email:         req.Email,
			Mobile:        req.Mobile,
			Address:       req.Address,
			PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		}, clientIP(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// VnPayResponse handles GET /api/cart/vnpay-response. The gateway redirects
// the customer's browser here; the route is unauthenticated because the
// signature in the query string is what proves authenticity.
func (h *CartHandler) VnPayResponse(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkoutService.HandleVnPayReturn(r.Context(), r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

// clientIP extracts the caller's IP, honoring X-Forwarded-For from a proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
