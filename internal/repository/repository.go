package repository

import (
	"context"

	"github.com/utafrali/checkoutcore/internal/domain"
)

// InventoryStore holds authoritative stock per product. Reserve and Release are
// linearizable per product and never serialize unrelated products.
type InventoryStore interface {
	// Reserve atomically decrements stock by qty when stock >= qty. Otherwise it
	// returns OutOfStock (or NotFound) and leaves stock untouched.
	Reserve(ctx context.Context, productID string, qty int) error

	// Release atomically increments stock by qty. It fails only with NotFound.
	Release(ctx context.Context, productID string, qty int) error

	// Get returns a copy of the product.
	Get(ctx context.Context, productID string) (*domain.Product, error)

	// Upsert creates a product or replaces its title, price, category and stock.
	Upsert(ctx context.Context, product *domain.Product) error

	// SetPrice changes the unit price of an existing product.
	SetPrice(ctx context.Context, productID string, unitPrice int64) error

	// List returns a page of products ordered by ID and the total count.
	List(ctx context.Context, offset, limit int) ([]domain.Product, int, error)
}

// CartStore keeps per-session cart entries in insertion order. It never
// touches inventory.
type CartStore interface {
	// Append adds qty to the entry for productID, creating it if needed. Both
	// Quantity and Reserved grow by qty since the caller has just reserved it.
	Append(ctx context.Context, sessionID, productID string, qty int) error

	// Snapshot returns an ordered copy of the session's entries.
	Snapshot(ctx context.Context, sessionID string) ([]domain.CartEntry, error)

	// SetReserved records how many units of productID the session now holds.
	SetReserved(ctx context.Context, sessionID, productID string, reserved int) error

	// Clear removes every entry of the session.
	Clear(ctx context.Context, sessionID string) error
}

// OrderLedger is the append-only store of committed orders.
type OrderLedger interface {
	// Append stores order. Appending an existing ID returns AlreadyExists.
	Append(ctx context.Context, order *domain.Order) error

	// ListBySession returns the session's orders in commit order.
	ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error)
}

// AttemptRepository keeps the audit trail of checkout attempts.
type AttemptRepository interface {
	Save(ctx context.Context, attempt *domain.CheckoutAttempt) error
	Get(ctx context.Context, id string) (*domain.CheckoutAttempt, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.CheckoutAttempt, error)
}
