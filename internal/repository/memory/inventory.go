package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// productSlot guards one product. Reserve and Release on the same product
// serialize on mu; different products never share a lock.
type productSlot struct {
	mu      sync.Mutex
	product domain.Product
}

// InventoryStore is an in-process inventory with per-product locking.
type InventoryStore struct {
	mu    sync.RWMutex // guards slots map membership only
	slots map[string]*productSlot
	now   func() time.Time
}

// NewInventoryStore creates an empty store.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		slots: make(map[string]*productSlot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *InventoryStore) slot(productID string) (*productSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[productID]
	return sl, ok
}

// Reserve decrements stock by qty if enough is available.
func (s *InventoryStore) Reserve(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sl, ok := s.slot(productID)
	if !ok {
		return apperrors.NotFound("product", productID)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.product.Stock < qty {
		return apperrors.OutOfStock(productID, qty, sl.product.Stock)
	}
	sl.product.Stock -= qty
	sl.product.UpdatedAt = s.now()
	return nil
}

// Release increments stock by qty. It deliberately ignores ctx: a release is a
// compensating action and must not be abandoned halfway.
func (s *InventoryStore) Release(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	sl, ok := s.slot(productID)
	if !ok {
		return apperrors.NotFound("product", productID)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.product.Stock += qty
	sl.product.UpdatedAt = s.now()
	return nil
}

// Get returns a copy of the product.
func (s *InventoryStore) Get(_ context.Context, productID string) (*domain.Product, error) {
	sl, ok := s.slot(productID)
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	p := sl.product
	return &p, nil
}

// Upsert creates or replaces a product.
func (s *InventoryStore) Upsert(_ context.Context, product *domain.Product) error {
	if product.Stock < 0 || product.UnitPrice < 0 {
		return apperrors.InvalidInput("stock and unit price must be non-negative")
	}
	p := *product
	p.UpdatedAt = s.now()

	if sl, ok := s.slot(p.ID); ok {
		sl.mu.Lock()
		sl.product = p
		sl.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[p.ID]; ok {
		// Lost the insert race; fall back to replacing under the slot lock.
		sl.mu.Lock()
		sl.product = p
		sl.mu.Unlock()
		return nil
	}
	s.slots[p.ID] = &productSlot{product: p}
	return nil
}

// SetPrice changes a product's unit price.
func (s *InventoryStore) SetPrice(_ context.Context, productID string, unitPrice int64) error {
	if unitPrice < 0 {
		return apperrors.InvalidInput("unit price must be non-negative")
	}
	sl, ok := s.slot(productID)
	if !ok {
		return apperrors.NotFound("product", productID)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.product.UnitPrice = unitPrice
	sl.product.UpdatedAt = s.now()
	return nil
}

// List returns products ordered by ID.
func (s *InventoryStore) List(_ context.Context, offset, limit int) ([]domain.Product, int, error) {
	s.mu.RLock()
	slots := make([]*productSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	products := make([]domain.Product, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		products = append(products, sl.product)
		sl.mu.Unlock()
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	total := len(products)
	if offset < 0 || offset >= total {
		return []domain.Product{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return products[offset:end], total, nil
}
