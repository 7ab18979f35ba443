package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"server/internal/account"
	"server/internal/backend"
	"server/internal/coupon"
	"server/internal/infra"
	"server/internal/payment"
	"server/internal/plans"
	"server/internal/session"
)

// fakeBackend serves the auth, table REST, and function endpoints the
// handlers reach during a request.
type fakeBackend struct {
	t *testing.T

	grantFails bool
	profiles   []map[string]any
	coupons    []map[string]any
	uses       []map[string]any

	profilePatches []map[string]string
	redemptions    int
}

func (f *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/auth/v1/token"):
			if f.grantFails {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": signedToken(f.t, "u1", "asha@example.com"),
				"expires_at":   time.Now().Add(time.Hour).Unix(),
				"user":         map[string]string{"id": "u1", "email": "asha@example.com"},
			})
		case r.URL.Path == "/rest/v1/profiles" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(f.profiles)
		case r.URL.Path == "/rest/v1/profiles" && r.Method == http.MethodPatch:
			var patch map[string]string
			_ = json.NewDecoder(r.Body).Decode(&patch)
			f.profilePatches = append(f.profilePatches, patch)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rest/v1/submissions":
			_ = json.NewEncoder(w).Encode([]map[string]string{})
		case r.URL.Path == "/rest/v1/guidance_calls":
			_ = json.NewEncoder(w).Encode([]map[string]string{})
		case r.URL.Path == "/rest/v1/coupons":
			_ = json.NewEncoder(w).Encode(f.coupons)
		case r.URL.Path == "/rest/v1/coupon_uses" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(f.uses)
		case r.URL.Path == "/rest/v1/coupon_uses" && r.Method == http.MethodPost:
			f.redemptions++
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/functions/v1/create-order":
			_ = json.NewEncoder(w).Encode(map[string]any{"order_id": "ord_1", "amount": 1200, "currency": "INR"})
		case r.URL.Path == "/functions/v1/verify-payment":
			_ = json.NewEncoder(w).Encode(map[string]bool{"verified": true})
		default:
			f.t.Errorf("unexpected backend call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func signedToken(t *testing.T, sub, email string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestApp(t *testing.T, fb *fakeBackend) *App {
	t.Helper()
	fb.t = t
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	opts := backend.Options{BaseURL: srv.URL, AnonKey: "anon", HTTPClient: srv.Client()}
	client, err := backend.New(opts)
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	functions, err := backend.NewFunctions(opts)
	if err != nil {
		t.Fatalf("backend.NewFunctions: %v", err)
	}

	logger := zerolog.Nop()
	sessions := session.NewAccessor(session.NewMemStore(), session.NewMemStore())
	resolver := plans.NewResolver(client, logger)
	gateway, err := payment.NewCheckoutGateway(payment.GatewayOptions{Functions: functions, KeyID: "key_1"})
	if err != nil {
		t.Fatalf("payment.NewCheckoutGateway: %v", err)
	}

	app := NewApp(&infra.Config{RateLimitPerMin: 100, AllowedOrigins: []string{"*"}}, logger)
	app.Backend = client
	app.Functions = functions
	app.Sessions = sessions
	app.Accounts = account.NewAggregator(client, sessions, resolver, logger)
	app.Plans = resolver
	app.Coupons = coupon.NewValidator(client)
	app.Payments = payment.NewOrchestrator(gateway, logger)
	return app
}

func seedSession(t *testing.T, app *App) {
	t.Helper()
	err := app.Sessions.Save(&session.Envelope{
		AccessToken: signedToken(t, "u1", "asha@example.com"),
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		UserID:      "u1",
		Email:       "asha@example.com",
		Tier:        session.TierEphemeral,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestLoginStoresSessionAndReturnsUser(t *testing.T) {
	fb := &fakeBackend{profiles: []map[string]any{
		{"id": "u1", "name": "Asha", "email": "asha@example.com", "plan": "free", "role": "student"},
	}}
	app := newTestApp(t, fb)

	rec := postJSON(app.Login, "/v1/auth/login", `{"email":"asha@example.com","password":"pw123456","remember":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	if user["name"] != "Asha" || user["plan"] != "free" {
		t.Fatalf("user = %+v", user)
	}

	env := app.Sessions.Current()
	if env == nil || env.Tier != session.TierDurable {
		t.Fatalf("remember=true must store a durable session, got %+v", env)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t, &fakeBackend{grantFails: true})

	rec := postJSON(app.Login, "/v1/auth/login", `{"email":"asha@example.com","password":"wrong-pass"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if app.Sessions.Current() != nil {
		t.Fatal("failed login must not store a session")
	}
}

func TestMeRequiresSession(t *testing.T) {
	app := newTestApp(t, &fakeBackend{})
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	app.Me(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMeReturnsViewModel(t *testing.T) {
	fb := &fakeBackend{profiles: []map[string]any{
		{"id": "u1", "name": "Asha", "email": "asha@example.com", "plan": "free", "role": "student"},
	}}
	app := newTestApp(t, fb)
	seedSession(t, app)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	app.Me(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	user := decodeBody(t, rec)["user"].(map[string]any)
	if user["submissions_left"] != float64(3) {
		t.Fatalf("submissions_left = %v, want 3", user["submissions_left"])
	}
}

func TestUpdateMePatchesProfile(t *testing.T) {
	fb := &fakeBackend{profiles: []map[string]any{
		{"id": "u1", "name": "Asha", "email": "asha@example.com", "plan": "free", "role": "student"},
	}}
	app := newTestApp(t, fb)
	seedSession(t, app)
	if _, err := app.Accounts.LoadSession(httptest.NewRequest(http.MethodGet, "/", nil).Context()); err != nil {
		t.Fatalf("prime view-model: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/me", strings.NewReader(`{"name":"Asha R"}`))
	rec := httptest.NewRecorder()
	app.UpdateMe(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(fb.profilePatches) != 1 || fb.profilePatches[0]["name"] != "Asha R" {
		t.Fatalf("patches = %+v", fb.profilePatches)
	}
	if app.Accounts.Current().Name != "Asha R" {
		t.Fatalf("view-model name = %q", app.Accounts.Current().Name)
	}
}

func TestPlansList(t *testing.T) {
	app := newTestApp(t, &fakeBackend{})
	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	rec := httptest.NewRecorder()
	app.PlansList(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	plansOut := decodeBody(t, rec)["plans"].([]any)
	if len(plansOut) != 4 {
		t.Fatalf("plans = %d, want 4", len(plansOut))
	}
	first := plansOut[0].(map[string]any)
	if first["tier"] != "free" {
		t.Fatalf("plans must be price-ordered, first = %v", first["tier"])
	}
}

func TestCouponValidateReportsReason(t *testing.T) {
	fb := &fakeBackend{coupons: []map[string]any{
		{"code": "OLD10", "kind": "percent", "value": 10, "active": false},
	}}
	app := newTestApp(t, fb)
	seedSession(t, app)

	rec := postJSON(app.CouponValidate, "/v1/coupons/validate", `{"code":"OLD10","plan":"pro"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["valid"] != false || body["reason"] != "inactive" {
		t.Fatalf("body = %+v", body)
	}
}

func TestCheckoutFlowWithCoupon(t *testing.T) {
	fb := &fakeBackend{
		profiles: []map[string]any{
			{"id": "u1", "name": "Asha", "email": "asha@example.com", "plan": "free", "role": "student"},
		},
		coupons: []map[string]any{
			{"code": "WELCOME20", "kind": "percent", "value": 20, "active": true, "per_user_limit": 1},
		},
		uses: []map[string]any{},
	}
	app := newTestApp(t, fb)
	seedSession(t, app)
	if _, err := app.Accounts.LoadSession(httptest.NewRequest(http.MethodGet, "/", nil).Context()); err != nil {
		t.Fatalf("prime view-model: %v", err)
	}

	rec := postJSON(app.CheckoutStart, "/v1/billing/checkout", `{"plan":"pro","coupon":"WELCOME20"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d: %s", rec.Code, rec.Body.String())
	}
	start := decodeBody(t, rec)
	if start["amount_due"] != float64(1200) {
		t.Fatalf("amount_due = %v, want 1200 after 20%% off 1499", start["amount_due"])
	}
	order := start["order"].(map[string]any)
	if order["order_id"] != "ord_1" {
		t.Fatalf("order = %+v", order)
	}

	rec = postJSON(app.CheckoutVerify, "/v1/billing/verify",
		`{"outcome":"completed","order_id":"ord_1","payment_id":"pay_1","signature":"sig","plan":"pro","coupon":"WELCOME20"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}
	verify := decodeBody(t, rec)
	if verify["status"] != "settled" {
		t.Fatalf("verify = %+v", verify)
	}
	user := verify["user"].(map[string]any)
	if user["plan"] != "pro" {
		t.Fatalf("plan after settle = %v, want pro", user["plan"])
	}
	if fb.redemptions != 1 {
		t.Fatalf("redemptions = %d, want 1", fb.redemptions)
	}
	wantPatch := false
	for _, p := range fb.profilePatches {
		if p["plan"] == "pro" {
			wantPatch = true
		}
	}
	if !wantPatch {
		t.Fatal("profile plan patch not written")
	}
}

func TestCheckoutCancelHasNoSideEffects(t *testing.T) {
	fb := &fakeBackend{profiles: []map[string]any{
		{"id": "u1", "name": "Asha", "email": "asha@example.com", "plan": "free", "role": "student"},
	}}
	app := newTestApp(t, fb)
	seedSession(t, app)

	rec := postJSON(app.CheckoutStart, "/v1/billing/checkout", `{"plan":"starter"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(app.CheckoutVerify, "/v1/billing/verify", `{"outcome":"cancelled"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["status"] != "cancelled" {
		t.Fatal("want cancelled status")
	}
	if len(fb.profilePatches) != 0 || fb.redemptions != 0 {
		t.Fatal("cancel must not write anything")
	}
	if app.Payments.State() != payment.StateIdle {
		t.Fatalf("state = %v, want idle", app.Payments.State())
	}
}

func TestCheckoutVerifyWithoutOpenCheckout(t *testing.T) {
	app := newTestApp(t, &fakeBackend{})
	seedSession(t, app)
	rec := postJSON(app.CheckoutVerify, "/v1/billing/verify", `{"outcome":"completed","order_id":"x","payment_id":"y","plan":"pro"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}
