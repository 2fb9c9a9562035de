package memory

import (
	"context"
	"sync"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// CartStore keeps carts in process. Entries keep their insertion order.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartEntry
}

// NewCartStore creates an empty store.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string][]domain.CartEntry)}
}

// Append increments the entry for productID or inserts a new one.
func (s *CartStore) Append(_ context.Context, sessionID, productID string, qty int) error {
	if qty < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.carts[sessionID]
	for i := range entries {
		if entries[i].ProductID == productID {
			entries[i].Quantity += qty
			entries[i].Reserved += qty
			return nil
		}
	}
	s.carts[sessionID] = append(entries, domain.CartEntry{ProductID: productID, Quantity: qty, Reserved: qty})
	return nil
}

// Snapshot returns a copy of the session's entries.
func (s *CartStore) Snapshot(_ context.Context, sessionID string) ([]domain.CartEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := domain.CloneEntries(s.carts[sessionID])
	if entries == nil {
		entries = []domain.CartEntry{}
	}
	return entries, nil
}

// SetReserved updates the held quantity of an existing entry.
func (s *CartStore) SetReserved(_ context.Context, sessionID, productID string, reserved int) error {
	if reserved < 0 {
		return apperrors.InvalidInput("reserved must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.carts[sessionID]
	for i := range entries {
		if entries[i].ProductID == productID {
			entries[i].Reserved = reserved
			return nil
		}
	}
	return apperrors.NotFound("cart entry", productID)
}

// Clear drops the session's cart.
func (s *CartStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}
