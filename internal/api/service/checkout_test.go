package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trongdv/bookstore/pkg/errors"
	"github.com/trongdv/bookstore/pkg/pagination"

	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/vnpay"
)

// --- Mock Order Repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, params pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	args := m.Called(ctx, id, paidAt)
	return args.Error(0)
}

// --- Test Helpers ---

const testHashSecret = "VNPAYTESTSECRET"

func newTestSigner() *vnpay.Signer {
	return vnpay.NewSigner(vnpay.Config{
		TmnCode:    "TESTTMN",
		HashSecret: testHashSecret,
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8080/api/cart/vnpay-response",
		Version:    "2.1.0",
		Command:    "pay",
		CurrCode:   "VND",
		Locale:     "vn",
		OrderType:  "other",
	})
}

func newTestCheckoutService(orderRepo *mockOrderRepository, cartRepo *mockCartRepository) *CheckoutService {
	return NewCheckoutService(orderRepo, cartRepo, newTestSigner(), newTestEventProducer(), newTestLogger())
}

// signedReturnQuery produces a callback query signed the way the gateway
// does: sorted keys, url-encoded values, HMAC-SHA512 over the joined string.
func signedReturnQuery(params map[string]string) url.Values {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params[k]))
	}
	data := strings.Join(pairs, "&")

	mac := hmac.New(sha512.New, []byte(testHashSecret))
	mac.Write([]byte(data))

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("vnp_SecureHash", hex.EncodeToString(mac.Sum(nil)))
	return query
}

func checkoutInput(method domain.PaymentMethod) CheckoutInput {
	return CheckoutInput{
		Name:          "Alice Nguyen",
		Email:         "alice@example.com",
		Mobile:        "0901234567",
		Address:       "1 Hang Bong, Hanoi",
		PaymentMethod: method,
	}
}

func cartWithItems() *domain.Cart {
	return &domain.Cart{
		UserID: "user-123",
		Items: []domain.CartItem{
			{BookID: 1, Name: "Clean Architecture", Price: 150000, Quantity: 2},
			{BookID: 2, Name: "The Go Programming Language", Price: 200000, Quantity: 1},
		},
	}
}

func vnpayOrder() *domain.Order {
	return &domain.Order{
		ID:            42,
		UserID:        "user-123",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodVnPay,
		TotalAmount:   500000,
		TotalQuantity: 3,
	}
}

// --- Checkout ---

func TestCheckoutEmptyCart(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	cartRepo := new(mockCartRepository)
	svc := newTestCheckoutService(orderRepo, cartRepo)

	cartRepo.On("Get", mock.Anything, "user-123").Return(&domain.Cart{UserID: "user-123"}, nil)

	_, err := svc.Checkout(context.Background(), "user-123", checkoutInput(domain.PaymentMethodCOD), "10.0.0.1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckoutUnknownPaymentMethod(t *testing.T) {
	svc := newTestCheckoutService(new(mockOrderRepository), new(mockCartRepository))

	_, err := svc.Checkout(context.Background(), "user-123", checkoutInput(domain.PaymentMethod("paypal")), "10.0.0.1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckoutMissingShippingDetails(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	cartRepo := new(mockCartRepository)
	svc := newTestCheckoutService(orderRepo, cartRepo)

	input := checkoutInput(domain.PaymentMethodCOD)
	input.Address = ""

	_, err := svc.Checkout(context.Background(), "user-123", input, "10.0.0.1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckoutCOD(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	cartRepo := new(mockCartRepository)
	svc := newTestCheckoutService(orderRepo, cartRepo)

	cartRepo.On("Get", mock.Anything, "user-123").Return(cartWithItems(), nil)
	orderRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Order).ID = 7
		}).Return(nil)
	cartRepo.On("Delete", mock.Anything, "user-123").Return(nil)

	result, err := svc.Checkout(context.Background(), "user-123", checkoutInput(domain.PaymentMethodCOD), "10.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, result.PaymentURL)
	assert.Equal(t, int64(7), result.Order.ID)
	assert.Equal(t, domain.OrderStatusPending, result.Order.Status)
	assert.Equal(t, "Alice Nguyen", result.Order.Name)
	assert.Equal(t, "0901234567", result.Order.Mobile)
	assert.Equal(t, "1 Hang Bong, Hanoi", result.Order.Address)
	assert.Equal(t, float64(500000), result.Order.TotalAmount)
	assert.Equal(t, 3, result.Order.TotalQuantity)
	assert.Len(t, result.Order.Details, 2)
	cartRepo.AssertCalled(t, "Delete", mock.Anything, "user-123")
}

func TestCheckoutVnPayReturnsPaymentURL(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	cartRepo := new(mockCartRepository)
	svc := newTestCheckoutService(orderRepo, cartRepo)

	cartRepo.On("Get", mock.Anything, "user-123").Return(cartWithItems(), nil)
	orderRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Order).ID = 42
		}).Return(nil)
	cartRepo.On("Delete", mock.Anything, "user-123").Return(nil)

	result, err := svc.Checkout(context.Background(), "user-123", checkoutInput(domain.PaymentMethodVnPay), "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, result.PaymentURL)
	assert.Contains(t, result.PaymentURL, "vnp_TxnRef=42")
	assert.Contains(t, result.PaymentURL, "vnp_SecureHash=")
	assert.Contains(t, result.PaymentURL, "vnp_IpAddr=10.0.0.1")
}

func TestCheckoutCartClearFailureIsNotFatal(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	cartRepo := new(mockCartRepository)
	svc := newTestCheckoutService(orderRepo, cartRepo)

	cartRepo.On("Get", mock.Anything, "user-123").Return(cartWithItems(), nil)
	orderRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	cartRepo.On("Delete", mock.Anything, "user-123").Return(apperrors.Internal(errors.New("redis down")))

	result, err := svc.Checkout(context.Background(), "user-123", checkoutInput(domain.PaymentMethodCOD), "10.0.0.1")
	require.NoError(t, err)
	assert.NotNil(t, result.Order)
}

// --- HandleVnPayReturn ---

func TestHandleVnPayReturnSuccess(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	query := signedReturnQuery(map[string]string{
		"vnp_TxnRef":        "42",
		"vnp_Amount":        "50000000",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "13863868",
		"vnp_BankCode":      "NCB",
		"vnp_PayDate":       "20260829143000",
	})

	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(vnpayOrder(), nil)
	orderRepo.On("MarkPaid", mock.Anything, int64(42), mock.Anything).Return(nil)

	order, err := svc.HandleVnPayReturn(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaidAt)
}

func TestHandleVnPayReturnTamperedAmount(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	query := signedReturnQuery(map[string]string{
		"vnp_TxnRef":       "42",
		"vnp_Amount":       "50000000",
		"vnp_ResponseCode": "00",
	})
	query.Set("vnp_Amount", "100")

	_, err := svc.HandleVnPayReturn(context.Background(), query)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	orderRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestHandleVnPayReturnMissingSignature(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	query := url.Values{}
	query.Set("vnp_TxnRef", "42")
	query.Set("vnp_ResponseCode", "00")

	_, err := svc.HandleVnPayReturn(context.Background(), query)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	orderRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestHandleVnPayReturnDeclined(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	query := signedReturnQuery(map[string]string{
		"vnp_TxnRef":       "42",
		"vnp_Amount":       "50000000",
		"vnp_ResponseCode": "24",
	})

	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(vnpayOrder(), nil)
	orderRepo.On("UpdateStatus", mock.Anything, int64(42), domain.OrderStatusPaymentFailed).Return(nil)

	order, err := svc.HandleVnPayReturn(context.Background(), query)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusPaymentFailed, order.Status)
	orderRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleVnPayReturnAlreadyPaidIsIdempotent(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	query := signedReturnQuery(map[string]string{
		"vnp_TxnRef":       "42",
		"vnp_Amount":       "50000000",
		"vnp_ResponseCode": "00",
	})

	paid := vnpayOrder()
	paid.Status = domain.OrderStatusPaid
	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(paid, nil)

	order, err := svc.HandleVnPayReturn(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	orderRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleVnPayReturnRejectsNonVnPayOrder(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	query := signedReturnQuery(map[string]string{
		"vnp_TxnRef":       "42",
		"vnp_Amount":       "50000000",
		"vnp_ResponseCode": "00",
	})

	cod := vnpayOrder()
	cod.PaymentMethod = domain.PaymentMethodCOD
	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(cod, nil)

	_, err := svc.HandleVnPayReturn(context.Background(), query)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Order Access ---

func TestGetOrderOwner(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(vnpayOrder(), nil)

	principal := &domain.Principal{UserID: "user-123", Roles: []string{domain.RoleUser}}
	order, err := svc.GetOrder(context.Background(), principal, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
}

func TestGetOrderForbiddenForStranger(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(vnpayOrder(), nil)

	principal := &domain.Principal{UserID: "someone-else", Roles: []string{domain.RoleUser}}
	_, err := svc.GetOrder(context.Background(), principal, 42)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestUpdateOrderStatusFulfillment(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	orderRepo.On("UpdateStatus", mock.Anything, int64(42), domain.OrderStatusShipped).Return(nil)

	err := svc.UpdateOrderStatus(context.Background(), 42, domain.OrderStatusShipped)
	require.NoError(t, err)
	orderRepo.AssertCalled(t, "UpdateStatus", mock.Anything, int64(42), domain.OrderStatusShipped)
}

func TestUpdateOrderStatusRejectsPaymentStates(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusPaid,
		domain.OrderStatusPaymentFailed,
		domain.OrderStatus("bogus"),
	} {
		err := svc.UpdateOrderStatus(context.Background(), 42, status)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "status %q", status)
	}
	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOrderAdminBypassesOwnership(t *testing.T) {
	orderRepo := new(mockOrderRepository)
	svc := newTestCheckoutService(orderRepo, new(mockCartRepository))

	orderRepo.On("GetByID", mock.Anything, int64(42)).Return(vnpayOrder(), nil)

	principal := &domain.Principal{UserID: "someone-else", Roles: []string{domain.RoleAdmin}}
	order, err := svc.GetOrder(context.Background(), principal, 42)
	require.NoError(t, err)
	assert.Equal(t, "user-123", order.UserID)
}
