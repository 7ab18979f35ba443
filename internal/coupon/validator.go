// Package coupon validates discount codes against the backend's coupons and
// coupon_uses tables. Validation is read-only; redemption is recorded only
// after a successful payment.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"server/internal/backend"
	"server/internal/domain"
)

type Validator struct {
	backend *backend.Client
	now     func() time.Time
}

func NewValidator(client *backend.Client) *Validator {
	return &Validator{backend: client, now: time.Now}
}

type couponRow struct {
	Code         string     `json:"code"`
	Kind         string     `json:"kind"`
	Value        int64      `json:"value"`
	Plans        []string   `json:"plans"`
	Active       bool       `json:"active"`
	ValidUntil   *time.Time `json:"valid_until"`
	MaxUses      int        `json:"max_uses"`
	UsedCount    int        `json:"used_count"`
	PerUserLimit int        `json:"per_user_limit"`
}

type useRow struct {
	ID string `json:"id"`
}

// Validate runs the check sequence: existence + active flag, expiry window,
// global usage cap, then per-user usage cap (a second backend query). The
// first failing check short-circuits with its sentinel; success yields the
// applied-coupon value for discounted-price display.
func (v *Validator) Validate(ctx context.Context, token, code string, tier domain.PlanTier, userID string) (*domain.AppliedCoupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrCouponInvalid
	}

	var rows []couponRow
	if err := v.backend.Select(ctx, token, "coupons", "", backend.Filters{"code": code}, &rows); err != nil {
		return nil, fmt.Errorf("coupon lookup: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrCouponInvalid
	}
	row := rows[0]
	c := domain.Coupon{
		Code:         row.Code,
		Kind:         domain.DiscountKind(row.Kind),
		Value:        row.Value,
		Active:       row.Active,
		ValidUntil:   row.ValidUntil,
		MaxUses:      row.MaxUses,
		UsedCount:    row.UsedCount,
		PerUserLimit: row.PerUserLimit,
	}
	for _, p := range row.Plans {
		c.Plans = append(c.Plans, domain.PlanTier(p))
	}

	if !c.Active {
		return nil, domain.ErrCouponInactive
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(v.now()) {
		return nil, domain.ErrCouponExpired
	}
	if !c.AppliesTo(tier) {
		return nil, domain.ErrCouponNotApplicable
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return nil, domain.ErrCouponExhausted
	}
	if c.PerUserLimit > 0 {
		var uses []useRow
		err := v.backend.Select(ctx, token, "coupon_uses", "id", backend.Filters{"coupon_code": code, "user_id": userID}, &uses)
		if err != nil {
			return nil, fmt.Errorf("coupon use lookup: %w", err)
		}
		if len(uses) >= c.PerUserLimit {
			return nil, domain.ErrCouponUserExhausted
		}
	}

	return &domain.AppliedCoupon{Code: c.Code, Kind: c.Kind, Value: c.Value}, nil
}

// RecordRedemption writes the coupon_uses row after payment settles.
func (v *Validator) RecordRedemption(ctx context.Context, token, code, userID, orderID string) error {
	payload := map[string]string{
		"coupon_code": strings.ToUpper(strings.TrimSpace(code)),
		"user_id":     userID,
		"order_id":    orderID,
	}
	if err := v.backend.Insert(ctx, token, "coupon_uses", payload, nil); err != nil {
		return fmt.Errorf("record coupon redemption: %w", err)
	}
	return nil
}

// Reason maps a validation failure to the stable reason string returned to
// the UI. Unknown errors report as a lookup failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCouponInvalid):
		return "invalid_code"
	case errors.Is(err, domain.ErrCouponInactive):
		return "inactive"
	case errors.Is(err, domain.ErrCouponExpired):
		return "expired"
	case errors.Is(err, domain.ErrCouponNotApplicable):
		return "not_applicable"
	case errors.Is(err, domain.ErrCouponExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrCouponUserExhausted):
		return "already_used"
	default:
		return "lookup_failed"
	}
}
