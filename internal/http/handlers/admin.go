package handlers

import (
	"net/http"

	"server/internal/backend"
)

// Admin endpoints run behind the admin guard middleware and forward the
// caller's own bearer token, so the backend's row policies stay the
// authority for what an admin can touch.

func (a *App) AdminSubmissions(w http.ResponseWriter, r *http.Request) {
	filters := backend.Filters{}
	if status := r.URL.Query().Get("status"); status != "" {
		filters["status"] = status
	}
	var rows []map[string]any
	if err := a.Backend.Select(r.Context(), bearerToken(r), "submissions", "", filters, &rows); err != nil {
		a.Logger.Warn().Err(err).Msg("admin submissions fetch failed")
		a.error(w, backendStatus(err), "fetch_failed", "could not load submissions")
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": rows})
}

type pricingUpdateRequest struct {
	Plans []pricingPlanRow `json:"plans" validate:"required,min=1,dive"`
}

type pricingPlanRow struct {
	Tier                 string `json:"tier" validate:"required"`
	DisplayName          string `json:"display_name"`
	PriceINR             int64  `json:"price_inr" validate:"gte=0"`
	SubmissionQuota      int    `json:"submission_quota" validate:"gte=0"`
	UnlimitedSubmissions bool   `json:"unlimited_submissions"`
	CallQuota            int    `json:"call_quota" validate:"gte=0"`
	ValidityDays         int    `json:"validity_days" validate:"gte=0"`
	Active               bool   `json:"active"`
}

// AdminPricingUpdate upserts pricing rows and refreshes the in-process plan
// table so the storefront reflects the change without a restart.
func (a *App) AdminPricingUpdate(w http.ResponseWriter, r *http.Request) {
	var req pricingUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Backend.Upsert(r.Context(), bearerToken(r), "pricing_plans", req.Plans); err != nil {
		a.Logger.Warn().Err(err).Msg("pricing upsert failed")
		a.error(w, backendStatus(err), "update_failed", "could not save pricing")
		return
	}
	a.Plans.Refresh(r.Context())
	a.json(w, http.StatusOK, map[string]any{"plans": a.Plans.Snapshot()})
}

func (a *App) AdminSettingsGet(w http.ResponseWriter, r *http.Request) {
	var rows []map[string]any
	if err := a.Backend.Select(r.Context(), bearerToken(r), "app_settings", "", nil, &rows); err != nil {
		a.Logger.Warn().Err(err).Msg("settings fetch failed")
		a.error(w, backendStatus(err), "fetch_failed", "could not load settings")
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	a.json(w, http.StatusOK, map[string]any{"settings": rows})
}

type settingsUpdateRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

func (a *App) AdminSettingsPut(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Backend.Upsert(r.Context(), bearerToken(r), "app_settings", []settingsUpdateRequest{req}); err != nil {
		a.Logger.Warn().Err(err).Msg("settings upsert failed")
		a.error(w, backendStatus(err), "update_failed", "could not save the setting")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "saved"})
}

type adminCouponRequest struct {
	Code         string   `json:"code" validate:"required,uppercase"`
	Kind         string   `json:"kind" validate:"required,oneof=percent flat"`
	Value        int64    `json:"value" validate:"required,gt=0"`
	Plans        []string `json:"plans"`
	Active       bool     `json:"active"`
	ValidUntil   string   `json:"valid_until" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	MaxUses      int      `json:"max_uses" validate:"gte=0"`
	PerUserLimit int      `json:"per_user_limit" validate:"gte=0"`
}

func (a *App) AdminCouponCreate(w http.ResponseWriter, r *http.Request) {
	var req adminCouponRequest
	if !a.decode(w, r, &req) {
		return
	}
	var created []map[string]any
	if err := a.Backend.Insert(r.Context(), bearerToken(r), "coupons", req, &created); err != nil {
		if backend.StatusOf(err) == http.StatusConflict {
			a.error(w, http.StatusConflict, "code_taken", "a coupon with this code already exists")
			return
		}
		a.Logger.Warn().Err(err).Msg("coupon create failed")
		a.error(w, backendStatus(err), "create_failed", "could not create the coupon")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"coupon": firstRow(created)})
}

func firstRow(rows []map[string]any) map[string]any {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
