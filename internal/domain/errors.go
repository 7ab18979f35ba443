package domain

import "errors"

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrUnknownStatus  = errors.New("unknown status value")
	ErrUnknownPlan    = errors.New("unknown plan tier")
)

// Coupon validation failures. Each check in the validator short-circuits with
// its own sentinel so the UI can show the exact reason.
var (
	ErrCouponInvalid       = errors.New("invalid coupon code")
	ErrCouponInactive      = errors.New("coupon is not active")
	ErrCouponExpired       = errors.New("coupon has expired")
	ErrCouponNotApplicable = errors.New("coupon not applicable to this plan")
	ErrCouponExhausted     = errors.New("coupon usage limit reached")
	ErrCouponUserExhausted = errors.New("coupon already used by this account")
)
