package domain

import "time"

// DiscountKind distinguishes percentage coupons from flat-amount coupons.
type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFlat    DiscountKind = "flat"
)

// Coupon mirrors a backend coupons row. Validated read-only at redemption
// time; never persisted locally.
type Coupon struct {
	Code         string       `json:"code"`
	Kind         DiscountKind `json:"kind"`
	Value        int64        `json:"value"`
	Plans        []PlanTier   `json:"plans"`
	Active       bool         `json:"active"`
	ValidUntil   *time.Time   `json:"valid_until,omitempty"`
	MaxUses      int          `json:"max_uses"`
	UsedCount    int          `json:"used_count"`
	PerUserLimit int          `json:"per_user_limit"`
}

// AppliesTo reports whether the coupon covers the given tier. An empty plan
// set covers every paid tier.
func (c Coupon) AppliesTo(tier PlanTier) bool {
	if len(c.Plans) == 0 {
		return true
	}
	for _, p := range c.Plans {
		if p == tier {
			return true
		}
	}
	return false
}

// AppliedCoupon is the client-side value used for discounted-price display
// until redemption is recorded after payment.
type AppliedCoupon struct {
	Code  string       `json:"code"`
	Kind  DiscountKind `json:"kind"`
	Value int64        `json:"value"`
}

// Discount returns the price after applying the coupon, floored at zero.
func (a AppliedCoupon) Discount(price int64) int64 {
	var discounted int64
	switch a.Kind {
	case DiscountPercent:
		discounted = price - price*a.Value/100
	case DiscountFlat:
		discounted = price - a.Value
	default:
		discounted = price
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}
