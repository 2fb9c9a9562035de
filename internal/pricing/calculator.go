package pricing

import (
	"fmt"
	"time"

	"github.com/utafrali/checkoutcore/internal/domain"
)

// Policy decides how individual rule discounts combine.
type Policy string

// Combine policies.
const (
	PolicySum Policy = "sum"
	PolicyMax Policy = "max"
)

// ParsePolicy parses "sum" or "max". An empty string means sum.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySum:
		return PolicySum, nil
	case PolicyMax:
		return PolicyMax, nil
	default:
		return "", fmt.Errorf("unknown pricing policy %q", s)
	}
}

// AppliedDiscount is one rule's contribution.
type AppliedDiscount struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Breakdown is the full result of pricing a cart.
type Breakdown struct {
	Subtotal      int64             `json:"subtotal"`
	Discounts     []AppliedDiscount `json:"discounts"`
	TotalDiscount int64             `json:"total_discount"`
	Final         int64             `json:"final"`
	Policy        Policy            `json:"policy"`
}

// Calculator applies a fixed list of rules under a combine policy. It holds
// no mutable state and is safe for concurrent use.
type Calculator struct {
	Rules  []Rule
	Policy Policy
}

// NewCalculator creates a calculator. An empty policy means sum.
func NewCalculator(policy Policy, rules ...Rule) *Calculator {
	if policy == "" {
		policy = PolicySum
	}
	return &Calculator{Rules: rules, Policy: policy}
}

// Compute prices items for identity at now.
func (c *Calculator) Compute(items []Item, identity domain.Identity, now time.Time) Breakdown {
	b := Breakdown{
		Subtotal:  subtotal(items),
		Discounts: make([]AppliedDiscount, 0, len(c.Rules)),
		Policy:    c.Policy,
	}

	for _, r := range c.Rules {
		amt := r.Discount(items, identity, now)
		b.Discounts = append(b.Discounts, AppliedDiscount{Name: r.Name, Amount: amt})
		if c.Policy == PolicyMax {
			b.TotalDiscount = max(b.TotalDiscount, amt)
		} else {
			b.TotalDiscount += amt
		}
	}

	b.Final = max(b.Subtotal-b.TotalDiscount, 0)
	return b
}

// Discount returns only the combined discount. The caller clamps it to the
// order total.
func (c *Calculator) Discount(items []Item, identity domain.Identity, now time.Time) int64 {
	return c.Compute(items, identity, now).TotalDiscount
}
