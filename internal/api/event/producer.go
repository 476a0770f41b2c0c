package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	pkgkafka "github.com/trongdv/bookstore/pkg/kafka"
	"github.com/trongdv/bookstore/pkg/logger"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// Kafka topics for bookstore domain events.
const (
	TopicUserRegistered     = "bookstore.user.registered"
	TopicUserEmailConfirmed = "bookstore.user.email_confirmed"
	TopicOrderPlaced        = "bookstore.order.placed"
	TopicOrderPaid          = "bookstore.order.paid"
	TopicPaymentFailed      = "bookstore.payment.failed"
)

// Aggregate type constants.
const (
	AggregateTypeUser  = "user"
	AggregateTypeOrder = "order"
)

// Source identifier for events originating from the API.
const SourceBookstoreAPI = "bookstore-api"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// UserEmailConfirmedData is the payload for a user.email_confirmed event.
type UserEmailConfirmedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID       int64   `json:"order_id"`
	UserID        string  `json:"user_id"`
	PaymentMethod string  `json:"payment_method"`
	TotalAmount   float64 `json:"total_amount"`
	TotalQuantity int     `json:"total_quantity"`
}

// OrderPaidData is the payload for an order.paid event.
type OrderPaidData struct {
	OrderID       int64  `json:"order_id"`
	UserID        string `json:"user_id"`
	TransactionNo string `json:"transaction_no,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
}

// PaymentFailedData is the payload for a payment.failed event.
type PaymentFailedData struct {
	OrderID      int64  `json:"order_id"`
	UserID       string `json:"user_id"`
	ResponseCode string `json:"response_code"`
}

// Producer publishes bookstore domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
		Roles: user.Roles,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishUserEmailConfirmed publishes a user.email_confirmed event.
func (p *Producer) PublishUserEmailConfirmed(ctx context.Context, user *domain.User) error {
	data := UserEmailConfirmedData{
		ID:    user.ID,
		Email: user.Email,
	}
	return p.publish(ctx, TopicUserEmailConfirmed, user.ID, AggregateTypeUser, data)
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	data := OrderPlacedData{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: string(order.PaymentMethod),
		TotalAmount:   order.TotalAmount,
		TotalQuantity: order.TotalQuantity,
	}
	return p.publish(ctx, TopicOrderPlaced, strconv.FormatInt(order.ID, 10), AggregateTypeOrder, data)
}

// PublishOrderPaid publishes an order.paid event.
func (p *Producer) PublishOrderPaid(ctx context.Context, order *domain.Order, transactionNo, bankCode string) error {
	data := OrderPaidData{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TransactionNo: transactionNo,
		BankCode:      bankCode,
	}
	return p.publish(ctx, TopicOrderPaid, strconv.FormatInt(order.ID, 10), AggregateTypeOrder, data)
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, order *domain.Order, responseCode string) error {
	data := PaymentFailedData{
		OrderID:      order.ID,
		UserID:       order.UserID,
		ResponseCode: responseCode,
	}
	return p.publish(ctx, TopicPaymentFailed, strconv.FormatInt(order.ID, 10), AggregateTypeOrder, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceBookstoreAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
