package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseRules parses a comma separated rule list such as
//
//	percentage_off:5,category_percentage_off:book=10,vip_only:7000,
//	coupon:WELCOME10=1000|SPRING=500,
//	seasonal:2025-11-20T00:00:00Z/2025-11-30T23:59:59Z=15,fixed_amount_off:300
//
// Each rule is named after its own entry. An empty string yields no rules.
func ParseRules(raw string) ([]Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var rules []Rule
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		r, err := parseRule(entry)
		if err != nil {
			return nil, err
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseRule(entry string) (Rule, error) {
	kind, args, ok := strings.Cut(entry, ":")
	if !ok || args == "" {
		return Rule{}, fmt.Errorf("pricing rule %q: expected type:args", entry)
	}
	r := Rule{Name: entry, Type: RuleType(kind)}

	var err error
	switch r.Type {
	case RulePercentageOff:
		r.Percent, err = parseInt(entry, args)
	case RuleFixedAmountOff, RuleVIPOnly:
		r.Amount, err = parseInt(entry, args)
	case RuleCategoryPercentageOff:
		cat, pct, found := strings.Cut(args, "=")
		if !found {
			return Rule{}, fmt.Errorf("pricing rule %q: expected category=percent", entry)
		}
		r.Category = cat
		r.Percent, err = parseInt(entry, pct)
	case RuleCoupon:
		r.Coupons = make(map[string]int64)
		for _, pair := range strings.Split(args, "|") {
			code, amt, found := strings.Cut(pair, "=")
			if !found || code == "" {
				return Rule{}, fmt.Errorf("pricing rule %q: expected CODE=amount", entry)
			}
			v, perr := parseInt(entry, amt)
			if perr != nil {
				return Rule{}, perr
			}
			r.Coupons[code] = v
		}
	case RuleSeasonal:
		window, pct, found := strings.Cut(args, "=")
		if !found {
			return Rule{}, fmt.Errorf("pricing rule %q: expected start/end=percent", entry)
		}
		start, end, found := strings.Cut(window, "/")
		if !found {
			return Rule{}, fmt.Errorf("pricing rule %q: expected start/end=percent", entry)
		}
		if r.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return Rule{}, fmt.Errorf("pricing rule %q: start: %w", entry, err)
		}
		if r.End, err = time.Parse(time.RFC3339, end); err != nil {
			return Rule{}, fmt.Errorf("pricing rule %q: end: %w", entry, err)
		}
		r.Percent, err = parseInt(entry, pct)
	default:
		return Rule{}, fmt.Errorf("pricing rule %q: unknown type %q", entry, kind)
	}
	if err != nil {
		return Rule{}, err
	}
	return r, nil
}

func parseInt(entry, s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pricing rule %q: %w", entry, err)
	}
	return v, nil
}
