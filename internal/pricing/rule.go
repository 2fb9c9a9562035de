package pricing

import (
	"fmt"
	"time"

	"github.com/utafrali/checkoutcore/internal/domain"
)

// RuleType selects how a rule computes its discount.
type RuleType string

// Rule types.
const (
	RulePercentageOff         RuleType = "percentage_off"
	RuleFixedAmountOff        RuleType = "fixed_amount_off"
	RuleCategoryPercentageOff RuleType = "category_percentage_off"
	RuleVIPOnly               RuleType = "vip_only"
	RuleCoupon                RuleType = "coupon"
	RuleSeasonal              RuleType = "seasonal"
)

// ValidRuleTypes returns the set of supported rule types.
func ValidRuleTypes() []RuleType {
	return []RuleType{
		RulePercentageOff,
		RuleFixedAmountOff,
		RuleCategoryPercentageOff,
		RuleVIPOnly,
		RuleCoupon,
		RuleSeasonal,
	}
}

// Item is one priced cart line as seen by the rules.
type Item struct {
	ProductID string
	Category  string
	UnitPrice int64
	Quantity  int
}

func subtotal(items []Item) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}

// Rule is one discount rule. Only the fields relevant to Type are read.
type Rule struct {
	Name     string
	Type     RuleType
	Percent  int64
	Amount   int64
	Category string
	// Coupons maps a coupon code to the fixed amount it takes off.
	Coupons map[string]int64
	// Start and End bound a seasonal rule, both inclusive.
	Start time.Time
	End   time.Time
}

// Validate checks the rule's parameters for its type.
func (r Rule) Validate() error {
	switch r.Type {
	case RulePercentageOff, RuleCategoryPercentageOff, RuleSeasonal:
		if r.Percent < 0 || r.Percent > 100 {
			return fmt.Errorf("rule %s: percent must be between 0 and 100", r.Name)
		}
	case RuleFixedAmountOff, RuleVIPOnly:
		if r.Amount < 0 {
			return fmt.Errorf("rule %s: amount must be non-negative", r.Name)
		}
	case RuleCoupon:
		if len(r.Coupons) == 0 {
			return fmt.Errorf("rule %s: at least one coupon code is required", r.Name)
		}
		for code, amt := range r.Coupons {
			if amt < 0 {
				return fmt.Errorf("rule %s: coupon %s amount must be non-negative", r.Name, code)
			}
		}
	default:
		return fmt.Errorf("rule %s: unknown type %q", r.Name, r.Type)
	}

	if r.Type == RuleCategoryPercentageOff && r.Category == "" {
		return fmt.Errorf("rule %s: category is required", r.Name)
	}
	if r.Type == RuleSeasonal && r.End.Before(r.Start) {
		return fmt.Errorf("rule %s: season ends before it starts", r.Name)
	}
	return nil
}

// Discount returns the rule's discount for the given cart. The result is
// never negative.
func (r Rule) Discount(items []Item, identity domain.Identity, now time.Time) int64 {
	var d int64
	switch r.Type {
	case RulePercentageOff:
		d = subtotal(items) * r.Percent / 100
	case RuleFixedAmountOff:
		d = r.Amount
	case RuleCategoryPercentageOff:
		var target int64
		for _, it := range items {
			if it.Category == r.Category {
				target += it.UnitPrice * int64(it.Quantity)
			}
		}
		d = target * r.Percent / 100
	case RuleVIPOnly:
		if identity.IsVIP() {
			d = r.Amount
		}
	case RuleCoupon:
		for code, amt := range r.Coupons {
			if identity.HasCoupon(code) {
				d += amt
			}
		}
	case RuleSeasonal:
		if !now.Before(r.Start) && !now.After(r.End) {
			d = subtotal(items) * r.Percent / 100
		}
	}
	return max(d, 0)
}
