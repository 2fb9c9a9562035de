package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// DeclinePrefix marks credentials the mock gateway always declines.
const DeclinePrefix = "decline_"

// MockGateway is an in-process gateway for development and tests. It declines
// credentials starting with DeclinePrefix and any listed in Declined.
type MockGateway struct {
	// Latency simulates processing time. The wait honours ctx.
	Latency time.Duration

	mu       sync.Mutex
	declined map[string]struct{}
	charges  []Charge
	now      func() time.Time
}

// NewMockGateway creates a mock gateway that declines the given credentials.
func NewMockGateway(declined ...string) *MockGateway {
	g := &MockGateway{
		declined: make(map[string]struct{}, len(declined)),
		now:      time.Now,
	}
	for _, c := range declined {
		g.declined[c] = struct{}{}
	}
	return g
}

// Name returns the provider name.
func (g *MockGateway) Name() string {
	return "mock"
}

// Decline adds credential to the decline list.
func (g *MockGateway) Decline(credential string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declined[credential] = struct{}{}
}

// Accept removes credential from the decline list.
func (g *MockGateway) Accept(credential string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.declined, credential)
}

// Charge simulates a charge.
func (g *MockGateway) Charge(ctx context.Context, amount int64, credential string) (*Charge, error) {
	if err := validateCharge(amount, credential); err != nil {
		return nil, err
	}

	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.declined[credential]; ok || strings.HasPrefix(credential, DeclinePrefix) {
		return nil, apperrors.PaymentDeclined("card declined by issuer")
	}

	c := Charge{
		TransactionID: "mock_txn_" + uuid.New().String(),
		Amount:        amount,
		Provider:      g.Name(),
		ChargedAt:     g.now().UTC(),
	}
	g.charges = append(g.charges, c)
	return &c, nil
}

// Charges returns the successful charges made so far.
func (g *MockGateway) Charges() []Charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Charge(nil), g.charges...)
}
