package memory

import (
	"context"
	"sync"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// AttemptRepository stores checkout attempts in process.
type AttemptRepository struct {
	mu        sync.RWMutex
	byID      map[string]*domain.CheckoutAttempt
	bySession map[string][]string
}

// NewAttemptRepository creates an empty repository.
func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{
		byID:      make(map[string]*domain.CheckoutAttempt),
		bySession: make(map[string][]string),
	}
}

// Save inserts or replaces the attempt.
func (r *AttemptRepository) Save(_ context.Context, attempt *domain.CheckoutAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[attempt.ID]; !ok {
		r.bySession[attempt.SessionID] = append(r.bySession[attempt.SessionID], attempt.ID)
	}
	r.byID[attempt.ID] = attempt.Clone()
	return nil
}

// Get returns a copy of the attempt.
func (r *AttemptRepository) Get(_ context.Context, id string) (*domain.CheckoutAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("checkout attempt", id)
	}
	return a.Clone(), nil
}

// ListBySession returns the session's attempts oldest first.
func (r *AttemptRepository) ListBySession(_ context.Context, sessionID string) ([]domain.CheckoutAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.bySession[sessionID]
	out := make([]domain.CheckoutAttempt, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.byID[id].Clone())
	}
	return out, nil
}
