package domain

import "time"

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "cod"
	PaymentMethodVnPay PaymentMethod = "vnpay"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// Order is a placed order with its lines. The customer contact fields are a
// snapshot taken at checkout; later profile changes must not reroute a
// shipment.
type Order struct {
	ID            int64         `json:"id"`
	UserID        string        `json:"user_id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Mobile        string        `json:"mobile"`
	Address       string        `json:"address"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalAmount   float64       `json:"total_amount"`
	TotalQuantity int           `json:"total_quantity"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Details       []OrderDetail `json:"details,omitempty"`
}

// OrderDetail is a single book line on an order, with the unit price frozen at
// purchase time.
type OrderDetail struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"order_id"`
	BookID   int64   `json:"book_id"`
	BookName string  `json:"book_name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}
