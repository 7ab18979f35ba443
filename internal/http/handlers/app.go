// Package handlers exposes the HTTP surface: auth, account view-model,
// plan storefront, checkout, coupons, and the admin console endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"server/internal/account"
	"server/internal/backend"
	"server/internal/coupon"
	"server/internal/infra"
	"server/internal/payment"
	"server/internal/plans"
	"server/internal/session"
)

type App struct {
	Logger    zerolog.Logger
	Cfg       *infra.Config
	Backend   *backend.Client
	Functions *backend.Functions
	Sessions  *session.Accessor
	Accounts  *account.Aggregator
	Plans     *plans.Resolver
	Coupons   *coupon.Validator
	Payments  *payment.Orchestrator
	Validate  *validator.Validate
}

func NewApp(cfg *infra.Config, logger zerolog.Logger) *App {
	return &App{
		Cfg:      cfg,
		Logger:   logger,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// decode unmarshals and validates a request body. A false return means the
// error response was already written.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := a.Validate.Struct(dst); err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid payload"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// currentSession resolves the stored session, writing a 401 when none exists.
func (a *App) currentSession(w http.ResponseWriter) *session.Envelope {
	env := a.Sessions.Current()
	if env == nil {
		a.error(w, http.StatusUnauthorized, "no_session", "sign in first")
		return nil
	}
	return env
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// backendStatus maps a backend error to the HTTP status this surface reports.
func backendStatus(err error) int {
	switch backend.StatusOf(err) {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return http.StatusUnauthorized
	case http.StatusForbidden:
		return http.StatusForbidden
	case http.StatusNotFound:
		return http.StatusNotFound
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
