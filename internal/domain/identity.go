package domain

import "strings"

// Customer levels recognised by pricing rules.
const (
	CustomerLevelRegular = "regular"
	CustomerLevelVIP     = "vip"
)

// Identity is the opaque caller identity supplied by the transport layer.
type Identity struct {
	SessionID  string
	UserID     string
	Credential string
	Level      string
	Coupons    []string
}

// IsVIP reports whether the caller is a VIP customer.
func (i Identity) IsVIP() bool {
	return strings.EqualFold(i.Level, CustomerLevelVIP)
}

// HasCoupon reports whether code was presented, ignoring case.
func (i Identity) HasCoupon(code string) bool {
	for _, c := range i.Coupons {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
