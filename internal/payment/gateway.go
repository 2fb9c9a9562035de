package payment

import (
	"context"
	"time"

	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

// Charge is the result of a successful charge.
type Charge struct {
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Provider      string    `json:"provider"`
	ChargedAt     time.Time `json:"charged_at"`
}

// Gateway charges a payment credential. A charge either succeeds with a
// transaction id or leaves nothing charged. Declines are reported as
// PaymentDeclined; any other error also means the caller was not charged.
type Gateway interface {
	// Name returns the provider name (e.g., "mock", "http").
	Name() string

	Charge(ctx context.Context, amount int64, credential string) (*Charge, error)
}

func validateCharge(amount int64, credential string) error {
	if amount <= 0 {
		return apperrors.InvalidInput("charge amount must be positive")
	}
	if credential == "" {
		return apperrors.Unauthenticated("payment credential is required")
	}
	return nil
}
