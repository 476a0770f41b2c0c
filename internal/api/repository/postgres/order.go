package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/trongdv/bookstore/pkg/errors"
	"github.com/trongdv/bookstore/pkg/pagination"

	"github.com/trongdv/bookstore/internal/api/domain"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool DB
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool DB) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order with its lines and decrements stock, all in one
// transaction. The stock UPDATE's quantity guard makes oversell impossible
// even under concurrent checkouts.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, customer_name, customer_email, customer_mobile, customer_address,
			status, payment_method, total_amount, total_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		order.UserID, order.Name, order.Email, order.Mobile, order.Address,
		order.Status, order.PaymentMethod,
		order.TotalAmount, order.TotalQuantity, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Details {
		d := &order.Details[i]
		d.OrderID = order.ID

		err = tx.QueryRow(ctx, `
			INSERT INTO order_details (order_id, book_id, book_name, price, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			d.OrderID, d.BookID, d.BookName, d.Price, d.Quantity,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert order detail: %w", err)
		}

		ct, err := tx.Exec(ctx, `
			UPDATE stocks SET quantity = quantity - $1
			WHERE book_id = $2 AND quantity >= $1`,
			d.Quantity, d.BookID,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.InvalidInput(fmt.Sprintf("insufficient stock for book %d", d.BookID))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, customer_name, customer_email, customer_mobile, customer_address,
			status, payment_method, total_amount, total_quantity, paid_at, created_at, updated_at
		FROM orders
		WHERE id = $1`, id,
	).Scan(
		&o.ID, &o.UserID, &o.Name, &o.Email, &o.Mobile, &o.Address,
		&o.Status, &o.PaymentMethod,
		&o.TotalAmount, &o.TotalQuantity, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, book_id, book_name, price, quantity
		FROM order_details
		WHERE order_id = $1
		ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query order details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.OrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.BookID, &d.BookName, &d.Price, &d.Quantity); err != nil {
			return nil, fmt.Errorf("scan order detail: %w", err)
		}
		o.Details = append(o.Details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order details: %w", err)
	}

	return &o, nil
}

// ListByUserID returns a user's orders, newest first.
func (r *OrderRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, customer_name, customer_email, customer_mobile, customer_address,
			status, payment_method, total_amount, total_quantity, paid_at, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query user orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// List returns all orders for the admin view with the total count.
func (r *OrderRepository) List(ctx context.Context, params pagination.Params) ([]domain.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, customer_name, customer_email, customer_mobile, customer_address,
			status, payment_method, total_amount, total_quantity, paid_at, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		params.PerPage, params.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus transitions the order to the given status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", strconv.FormatInt(id, 10))
	}
	return nil
}

// MarkPaid transitions the order to paid and records the payment time.
func (r *OrderRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, paid_at = $2, updated_at = $2 WHERE id = $3`,
		domain.OrderStatusPaid, paidAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Name, &o.Email, &o.Mobile, &o.Address,
			&o.Status, &o.PaymentMethod,
			&o.TotalAmount, &o.TotalQuantity, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}
