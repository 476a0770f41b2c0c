package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/trongdv/bookstore/pkg/httputil"
	"github.com/trongdv/bookstore/pkg/pagination"
	"github.com/trongdv/bookstore/pkg/validator"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/service"
)

// OrderHandler serves order history and the admin order view.
type OrderHandler struct {
	checkoutService *service.CheckoutService
	logger          *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(checkoutService *service.CheckoutService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// ListMine handles GET /api/orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	orders, err := h.checkoutService.ListMyOrders(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid order id",
		})
		return
	}

	order, err := h.checkoutService.GetOrder(r.Context(), principal, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

// ListAll handles GET /api/admin/orders?page=&per_page=
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkoutService.ListAllOrders(r.Context(), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// UpdateStatusRequest is the JSON body for the admin status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=shipped delivered cancelled"`
}

// UpdateStatus handles PUT /api/admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Code: "INVALID_INPUT", Message: "invalid order id",
		})
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.checkoutService.UpdateOrderStatus(r.Context(), id, domain.OrderStatus(req.Status)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}
