package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/checkoutcore/internal/domain"
	"github.com/utafrali/checkoutcore/pkg/database"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// InventoryStore keeps products in PostgreSQL. Reserve is a single conditional
// UPDATE, so Postgres' row lock serializes reservations per product while
// reservations on other rows proceed in parallel.
type InventoryStore struct {
	pool   database.DBTX
	tracer *database.QueryTracer
}

// NewInventoryStore creates a PostgreSQL-backed inventory store. tracer may be nil.
func NewInventoryStore(pool database.DBTX, tracer *database.QueryTracer) *InventoryStore {
	return &InventoryStore{pool: pool, tracer: tracer}
}

const productColumns = `id, title, unit_price, stock, category, updated_at`

// Reserve decrements stock by qty when at least qty units remain.
func (s *InventoryStore) Reserve(ctx context.Context, productID string, qty int) (err error) {
	if qty < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	const query = `UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`
	ctx, done := s.tracer.Start(ctx, "reserve", query)
	defer func() { done(err) }()

	tag, err := s.pool.Exec(ctx, query, qty, productID)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: either the product is missing or stock is short.
	var available int
	err = s.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("product", productID)
		}
		return fmt.Errorf("probe stock: %w", err)
	}
	return apperrors.OutOfStock(productID, qty, available)
}

// Release increments stock by qty.
func (s *InventoryStore) Release(ctx context.Context, productID string, qty int) (err error) {
	if qty < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	const query = `UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`
	ctx, done := s.tracer.Start(ctx, "release", query)
	defer func() { done(err) }()

	tag, err := s.pool.Exec(ctx, query, qty, productID)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

// Get returns the product.
func (s *InventoryStore) Get(ctx context.Context, productID string) (_ *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	ctx, done := s.tracer.Start(ctx, "get_product", query)
	defer func() { done(err) }()

	var p domain.Product
	err = s.pool.QueryRow(ctx, query, productID).Scan(
		&p.ID, &p.Title, &p.UnitPrice, &p.Stock, &p.Category, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Upsert inserts the product or overwrites every mutable column.
func (s *InventoryStore) Upsert(ctx context.Context, product *domain.Product) (err error) {
	if product.Stock < 0 || product.UnitPrice < 0 {
		return apperrors.InvalidInput("stock and unit price must be non-negative")
	}
	const query = `
		INSERT INTO products (id, title, unit_price, stock, category, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			unit_price = EXCLUDED.unit_price,
			stock = EXCLUDED.stock,
			category = EXCLUDED.category,
			updated_at = EXCLUDED.updated_at`
	ctx, done := s.tracer.Start(ctx, "upsert_product", query)
	defer func() { done(err) }()

	_, err = s.pool.Exec(ctx, query,
		product.ID, product.Title, product.UnitPrice, product.Stock, product.Category,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// SetPrice changes the unit price of an existing product.
func (s *InventoryStore) SetPrice(ctx context.Context, productID string, unitPrice int64) (err error) {
	if unitPrice < 0 {
		return apperrors.InvalidInput("unit price must be non-negative")
	}
	const query = `UPDATE products SET unit_price = $1, updated_at = NOW() WHERE id = $2`
	ctx, done := s.tracer.Start(ctx, "set_price", query)
	defer func() { done(err) }()

	tag, err := s.pool.Exec(ctx, query, unitPrice, productID)
	if err != nil {
		return fmt.Errorf("set price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

// List returns a page of products ordered by ID along with the total count.
func (s *InventoryStore) List(ctx context.Context, offset, limit int) (_ []domain.Product, _ int, err error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id LIMIT $1 OFFSET $2`
	ctx, done := s.tracer.Start(ctx, "list_products", query)
	defer func() { done(err) }()

	var total int
	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		var p domain.Product
		if err = rows.Scan(&p.ID, &p.Title, &p.UnitPrice, &p.Stock, &p.Category, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}
