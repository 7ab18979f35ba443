package handlers

import (
	"net/http"

	"server/internal/coupon"
	"server/internal/domain"
)

type couponValidateRequest struct {
	Code string `json:"code" validate:"required"`
	Plan string `json:"plan" validate:"required"`
}

// CouponValidate checks a code against a plan and reports either the applied
// discount or the first failing rule. Rule failures are a 200 with
// valid=false; only infrastructure trouble surfaces as an error status.
func (a *App) CouponValidate(w http.ResponseWriter, r *http.Request) {
	env := a.currentSession(w)
	if env == nil {
		return
	}
	var req couponValidateRequest
	if !a.decode(w, r, &req) {
		return
	}
	tier := domain.PlanTier(req.Plan)
	if !domain.KnownTier(tier) || tier == domain.PlanFree {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown plan")
		return
	}

	applied, err := a.Coupons.Validate(r.Context(), env.AccessToken, req.Code, tier, env.UserID)
	if err != nil {
		reason := coupon.Reason(err)
		if reason == "lookup_failed" {
			a.Logger.Warn().Err(err).Msg("coupon lookup failed")
			a.error(w, http.StatusBadGateway, "lookup_failed", "could not check the code")
			return
		}
		a.json(w, http.StatusOK, map[string]any{"valid": false, "reason": reason})
		return
	}

	price := a.Plans.Plan(tier).PriceINR
	a.json(w, http.StatusOK, map[string]any{
		"valid":            true,
		"code":             applied.Code,
		"kind":             applied.Kind,
		"value":            applied.Value,
		"price_inr":        price,
		"discounted_price": applied.Discount(price),
	})
}
