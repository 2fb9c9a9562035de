package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/checkoutcore/internal/domain"
	"github.com/utafrali/checkoutcore/pkg/database"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

const uniqueViolation = "23505"

// OrderLedger stores committed orders in the orders and order_lines tables.
// Rows are only ever inserted.
type OrderLedger struct {
	pool   database.DBTX
	tracer *database.QueryTracer
}

// NewOrderLedger creates a PostgreSQL-backed ledger. tracer may be nil.
func NewOrderLedger(pool database.DBTX, tracer *database.QueryTracer) *OrderLedger {
	return &OrderLedger{pool: pool, tracer: tracer}
}

// Append writes the order and its lines in one transaction.
func (l *OrderLedger) Append(ctx context.Context, order *domain.Order) (err error) {
	ctx, done := l.tracer.Start(ctx, "append_order", "INSERT INTO orders")
	defer func() { done(err) }()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, session_id, user_id, subtotal, discount, total, status, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.SessionID, order.UserID, order.Subtotal, order.Discount, order.Total,
		order.Status, order.TransactionID, order.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyExists("order", "id", order.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, line := range order.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, line_no, product_id, title, quantity, unit_price_at_checkout)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, i, line.ProductID, line.Title, line.Quantity, line.UnitPriceAtCheckout,
		)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// ListBySession returns the session's orders in commit order.
func (l *OrderLedger) ListBySession(ctx context.Context, sessionID string) (_ []domain.Order, err error) {
	const query = `
		SELECT id, session_id, user_id, subtotal, discount, total, status, transaction_id, created_at
		FROM orders
		WHERE session_id = $1
		ORDER BY seq`
	ctx, done := l.tracer.Start(ctx, "list_orders", query)
	defer func() { done(err) }()

	rows, err := l.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := []domain.Order{}
	index := map[string]int{}
	for rows.Next() {
		var o domain.Order
		if err = rows.Scan(&o.ID, &o.SessionID, &o.UserID, &o.Subtotal, &o.Discount, &o.Total,
			&o.Status, &o.TransactionID, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Lines = []domain.OrderLine{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lineRows, err := l.pool.Query(ctx, `
		SELECT order_id, product_id, title, quantity, unit_price_at_checkout
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`, ids)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var orderID string
		var line domain.OrderLine
		if err = lineRows.Scan(&orderID, &line.ProductID, &line.Title, &line.Quantity, &line.UnitPriceAtCheckout); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
		}
	}
	if err = lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return orders, nil
}
