package domain

import "time"

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusCommitted = "committed"
	OrderStatusFailed    = "failed"
)

// Order is a priced checkout. Only committed orders are written to the ledger
// and they are never modified afterwards.
type Order struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	UserID        string      `json:"user_id,omitempty"`
	Lines         []OrderLine `json:"lines"`
	Subtotal      int64       `json:"subtotal"`
	Discount      int64       `json:"discount"`
	Total         int64       `json:"total"`
	Status        string      `json:"status"`
	TransactionID string      `json:"transaction_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// OrderLine captures the unit price in force when the checkout was priced.
type OrderLine struct {
	ProductID           string `json:"product_id"`
	Title               string `json:"title"`
	Quantity            int    `json:"quantity"`
	UnitPriceAtCheckout int64  `json:"unit_price_at_checkout"`
}

// LineTotal returns quantity times the captured unit price.
func (l OrderLine) LineTotal() int64 {
	return l.UnitPriceAtCheckout * int64(l.Quantity)
}

// CalculateSubtotal sums the line totals.
func (o *Order) CalculateSubtotal() int64 {
	var subtotal int64
	for _, l := range o.Lines {
		subtotal += l.LineTotal()
	}
	return subtotal
}

// ApplyDiscount sets Subtotal, Discount and Total. The discount is clamped to
// [0, subtotal] so the total can never go negative or exceed the subtotal.
func (o *Order) ApplyDiscount(discount int64) {
	o.Subtotal = o.CalculateSubtotal()
	o.Discount = ClampDiscount(discount, o.Subtotal)
	o.Total = o.Subtotal - o.Discount
}

// IsCommitted reports whether the order reached the ledger.
func (o *Order) IsCommitted() bool {
	return o.Status == OrderStatusCommitted
}

// ClampDiscount bounds discount to [0, total].
func ClampDiscount(discount, total int64) int64 {
	switch {
	case discount < 0:
		return 0
	case discount > total:
		return total
	default:
		return discount
	}
}
