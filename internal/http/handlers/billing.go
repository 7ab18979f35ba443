package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"server/internal/backend"
	"server/internal/coupon"
	"server/internal/domain"
	"server/internal/payment"
)

type checkoutRequest struct {
	Plan   string `json:"plan" validate:"required"`
	Coupon string `json:"coupon"`
}

// CheckoutStart prices the purchase, applies an optional coupon, and opens a
// checkout: the returned order descriptor is what the payment widget needs.
func (a *App) CheckoutStart(w http.ResponseWriter, r *http.Request) {
	env := a.currentSession(w)
	if env == nil {
		return
	}
	var req checkoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	tier := domain.PlanTier(req.Plan)
	if !domain.KnownTier(tier) || tier == domain.PlanFree {
		a.error(w, http.StatusBadRequest, "bad_request", "plan is not purchasable")
		return
	}

	price := a.Plans.Plan(tier).PriceINR
	var applied *domain.AppliedCoupon
	if req.Coupon != "" {
		var err error
		applied, err = a.Coupons.Validate(r.Context(), env.AccessToken, req.Coupon, tier, env.UserID)
		if err != nil {
			a.error(w, http.StatusUnprocessableEntity, "coupon_rejected", coupon.Reason(err))
			return
		}
		price = applied.Discount(price)
	}

	order, err := a.Payments.Begin(r.Context(), payment.OrderRequest{
		Plan:      string(tier),
		AmountINR: price,
		Receipt:   fmt.Sprintf("%s-%s-%d", tier, env.UserID, time.Now().Unix()),
	})
	if err != nil {
		if errors.Is(err, payment.ErrPurchaseInFlight) {
			a.error(w, http.StatusConflict, "purchase_in_flight", "another purchase is already in progress")
			return
		}
		a.Logger.Error().Err(err).Str("plan", req.Plan).Msg("checkout start failed")
		a.error(w, http.StatusBadGateway, "checkout_failed", "could not start the checkout")
		return
	}

	resp := map[string]any{"order": order, "amount_due": price}
	if applied != nil {
		resp["coupon"] = applied.Code
	}
	a.json(w, http.StatusCreated, resp)
}

type checkoutVerifyRequest struct {
	Outcome   string `json:"outcome" validate:"required,oneof=completed cancelled failed"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
	Plan      string `json:"plan"`
	Coupon    string `json:"coupon"`
}

// CheckoutVerify consumes the widget's terminal report. On a verified
// completion the plan write, the coupon redemption record, and the local
// view-model patch all happen before the response; cancellations unwind with
// no side effects.
func (a *App) CheckoutVerify(w http.ResponseWriter, r *http.Request) {
	env := a.currentSession(w)
	if env == nil {
		return
	}
	var req checkoutVerifyRequest
	if !a.decode(w, r, &req) {
		return
	}

	res := payment.CheckoutResult{
		Completion: payment.Completion{OrderID: req.OrderID, PaymentID: req.PaymentID, Signature: req.Signature},
		Reason:     req.Reason,
	}
	switch req.Outcome {
	case "cancelled":
		res.Outcome = payment.OutcomeCancelled
	case "failed":
		res.Outcome = payment.OutcomeFailed
	default:
		res.Outcome = payment.OutcomeCompleted
		tier := domain.PlanTier(req.Plan)
		if !domain.KnownTier(tier) || tier == domain.PlanFree {
			a.error(w, http.StatusBadRequest, "bad_request", "plan is not purchasable")
			return
		}
	}

	err := a.Payments.Complete(r.Context(), res, a.settleUpgrade(env.AccessToken, env.UserID, domain.PlanTier(req.Plan), req.Coupon, req.OrderID))
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrNoOpenCheckout):
		a.error(w, http.StatusConflict, "no_open_checkout", "no checkout is open")
		return
	case errors.Is(err, payment.ErrVerifyFailed):
		a.error(w, http.StatusUnprocessableEntity, "verify_failed", "payment could not be verified")
		return
	case res.Outcome == payment.OutcomeFailed:
		a.json(w, http.StatusOK, map[string]string{"status": "failed", "reason": req.Reason})
		return
	default:
		a.Logger.Error().Err(err).Str("order_id", req.OrderID).Msg("post-payment update failed")
		a.error(w, http.StatusBadGateway, "settle_failed", "payment verified but the upgrade did not apply")
		return
	}

	if res.Outcome == payment.OutcomeCancelled {
		a.json(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"status": "settled", "user": a.Accounts.Current()})
}

// settleUpgrade is the continuation that runs only after verification
// succeeds: persist the new plan, record the redemption, patch the local
// view-model.
func (a *App) settleUpgrade(token, userID string, tier domain.PlanTier, couponCode, orderID string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		patch := map[string]string{
			"plan":       string(tier),
			"plan_start": time.Now().UTC().Format(time.RFC3339),
		}
		if err := a.Backend.Update(ctx, token, "profiles", backend.Filters{"id": userID}, patch); err != nil {
			return fmt.Errorf("persist plan upgrade: %w", err)
		}
		if couponCode != "" {
			if err := a.Coupons.RecordRedemption(ctx, token, couponCode, userID, orderID); err != nil {
				// the upgrade stands; an unrecorded redemption is recoverable
				a.Logger.Warn().Err(err).Str("coupon", couponCode).Msg("coupon redemption not recorded")
			}
		}
		a.Accounts.ApplyPlanUpgrade(tier)
		return nil
	}
}

// CheckoutStatus reports where the purchase state machine currently stands.
func (a *App) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"state": a.Payments.State().String()})
}
