package memory

import (
	"context"
	"sync"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// OrderLedger is an append-only in-process order store.
type OrderLedger struct {
	mu        sync.RWMutex
	ids       map[string]struct{}
	bySession map[string][]domain.Order
}

// NewOrderLedger creates an empty ledger.
func NewOrderLedger() *OrderLedger {
	return &OrderLedger{
		ids:       make(map[string]struct{}),
		bySession: make(map[string][]domain.Order),
	}
}

// Append stores a copy of order.
func (l *OrderLedger) Append(_ context.Context, order *domain.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[order.ID]; ok {
		return apperrors.AlreadyExists("order", "id", order.ID)
	}
	o := *order
	o.Lines = append([]domain.OrderLine(nil), order.Lines...)
	l.ids[o.ID] = struct{}{}
	l.bySession[o.SessionID] = append(l.bySession[o.SessionID], o)
	return nil
}

// ListBySession returns copies of the session's orders in commit order.
func (l *OrderLedger) ListBySession(_ context.Context, sessionID string) ([]domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.bySession[sessionID]
	out := make([]domain.Order, len(src))
	for i, o := range src {
		o.Lines = append([]domain.OrderLine(nil), o.Lines...)
		out[i] = o
	}
	return out, nil
}
