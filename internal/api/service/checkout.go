package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	apperrors "github.com/trongdv/bookstore/pkg/errors"
	"github.com/trongdv/bookstore/pkg/pagination"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/event"
	"github.com/trongdv/bookstore/internal/api/repository"
	"github.com/trongdv/bookstore/internal/api/vnpay"
)

// CheckoutService turns carts into orders and settles VnPay payments.
type CheckoutService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	signer    *vnpay.Signer
	producer  *event.Producer
	logger    *slog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	signer *vnpay.Signer,
	producer *event.Producer,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		signer:    signer,
		producer:  producer,
		logger:    logger,
		now:       time.Now,
	}
}

// CheckoutResult is returned from a successful checkout. PaymentURL is set
// only for VnPay orders; the caller redirects the user there.
type CheckoutResult struct {
	Order      *domain.Order `json:"order"`
	PaymentURL string        `json:"payment_url,omitempty"`
}

// CheckoutInput carries the shipping details and payment method for an order.
type CheckoutInput struct {
	Name          string
	Email         string
	Mobile        string
	Address       string
	PaymentMethod domain.PaymentMethod
}

// Checkout places an order from the user's cart. Stock is decremented
// atomically with the order insert; on success the cart is cleared. VnPay
// orders additionally get a signed redirect URL built from the caller's IP.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, input CheckoutInput, clientIP string) (*CheckoutResult, error) {
	method := input.PaymentMethod
	if method != domain.PaymentMethodCOD && method != domain.PaymentMethodVnPay {
		return nil, apperrors.InvalidInput("unknown payment method")
	}
	if input.Name == "" || input.Mobile == "" || input.Address == "" {
		return nil, apperrors.InvalidInput("name, mobile and address are required")
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	now := s.now().UTC()
	order := &domain.Order{
		UserID:        userID,
		Name:          input.Name,
		Email:         input.Email,
		Mobile:        input.Mobile,
		Address:       input.Address,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		TotalAmount:   cart.TotalAmount(),
		TotalQuantity: cart.TotalQuantity(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range cart.Items {
		order.Details = append(order.Details, domain.OrderDetail{
			BookID:   item.BookID,
			BookName: item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := s.cartRepo.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("user_id", userID),
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	result := &CheckoutResult{Order: order}
	if method == domain.PaymentMethodVnPay {
		result.PaymentURL = s.signer.BuildRedirectURL(order, clientIP, order.CreatedAt)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.Int64("order_id", order.ID),
		slog.String("user_id", userID),
		slog.String("payment_method", string(method)),
	)

	return result, nil
}

// HandleVnPayReturn processes the gateway's return callback. The signature is
// verified before any parameter is trusted. A settled order is left untouched
// so the gateway may retry the callback safely.
func (s *CheckoutService) HandleVnPayReturn(ctx context.Context, query url.Values) (*domain.Order, error) {
	params, err := s.signer.VerifyReturn(query)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected vnpay callback",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.PaymentMethodVnPay {
		return nil, apperrors.InvalidInput("order was not paid through vnpay")
	}
	if order.Status == domain.OrderStatusPaid {
		return order, nil
	}

	if !params.PaymentSucceed {
		if err := s.orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusPaymentFailed); err != nil {
			return nil, err
		}
		order.Status = domain.OrderStatusPaymentFailed

		if err := s.producer.PublishPaymentFailed(ctx, order, params.ResponseCode); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment.failed event",
				slog.Int64("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
		return order, apperrors.PaymentFailed(fmt.Sprintf("payment declined with code %s", params.ResponseCode))
	}

	paidAt := s.now().UTC()
	if err := s.orderRepo.MarkPaid(ctx, order.ID, paidAt); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatusPaid
	order.PaidAt = &paidAt

	if err := s.producer.PublishOrderPaid(ctx, order, params.TransactionNo, params.BankCode); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.paid event",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order paid",
		slog.Int64("order_id", order.ID),
		slog.String("transaction_no", params.TransactionNo),
	)

	return order, nil
}

// GetOrder returns an order, restricted to its owner unless the caller is an
// admin.
func (s *CheckoutService) GetOrder(ctx context.Context, principal *domain.Principal, orderID int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != principal.UserID && !principal.HasRole(domain.RoleAdmin) {
		return nil, apperrors.Forbidden("order belongs to another user")
	}
	return order, nil
}

// ListMyOrders returns the caller's orders, newest first.
func (s *CheckoutService) ListMyOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orderRepo.ListByUserID(ctx, userID)
}

// adminAssignableStatuses are the fulfillment states an admin may set by
// hand. Payment states (pending/paid/payment_failed) are owned by the
// payment flow and cannot be assigned here.
var adminAssignableStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusShipped:   true,
	domain.OrderStatusDelivered: true,
	domain.OrderStatusCancelled: true,
}

// UpdateOrderStatus moves an order into a fulfillment state.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	if !adminAssignableStatuses[status] {
		return apperrors.InvalidInput(fmt.Sprintf("status %q cannot be assigned", status))
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.Int64("order_id", orderID),
		slog.String("status", string(status)),
	)
	return nil
}

// ListAllOrders returns every order for the admin view.
func (s *CheckoutService) ListAllOrders(ctx context.Context, params pagination.Params) (*pagination.Result[domain.Order], error) {
	orders, total, err := s.orderRepo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	result := pagination.NewResult(orders, total, params)
	return &result, nil
}
