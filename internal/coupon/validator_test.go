package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"server/internal/backend"
	"server/internal/domain"
)

func newValidator(t *testing.T, coupons []map[string]any, uses []map[string]any) *Validator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/rest/v1/") {
		case "coupons":
			_ = json.NewEncoder(w).Encode(coupons)
		case "coupon_uses":
			_ = json.NewEncoder(w).Encode(uses)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	client, err := backend.New(backend.Options{BaseURL: srv.URL, AnonKey: "anon", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	return NewValidator(client)
}

func activeCoupon(overrides map[string]any) map[string]any {
	row := map[string]any{
		"code": "WELCOME20", "kind": "percent", "value": 20,
		"plans": []string{}, "active": true,
		"max_uses": 100, "used_count": 5, "per_user_limit": 1,
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func TestValidateHappyPath(t *testing.T) {
	v := newValidator(t, []map[string]any{activeCoupon(nil)}, []map[string]any{})
	applied, err := v.Validate(context.Background(), "tok", "welcome20", domain.PlanPro, "u1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if applied.Code != "WELCOME20" || applied.Kind != domain.DiscountPercent || applied.Value != 20 {
		t.Fatalf("applied = %+v", applied)
	}
	if got := applied.Discount(1000); got != 800 {
		t.Fatalf("Discount(1000) = %d, want 800", got)
	}
}

func TestValidateFailureReasons(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	tests := []struct {
		name       string
		coupons    []map[string]any
		uses       []map[string]any
		tier       domain.PlanTier
		wantErr    error
		wantReason string
	}{
		{
			name:       "unknown code",
			coupons:    []map[string]any{},
			wantErr:    domain.ErrCouponInvalid,
			wantReason: "invalid_code",
		},
		{
			name:       "inactive",
			coupons:    []map[string]any{activeCoupon(map[string]any{"active": false})},
			wantErr:    domain.ErrCouponInactive,
			wantReason: "inactive",
		},
		{
			name:       "expired is distinct from invalid",
			coupons:    []map[string]any{activeCoupon(map[string]any{"valid_until": past.Format(time.RFC3339)})},
			wantErr:    domain.ErrCouponExpired,
			wantReason: "expired",
		},
		{
			name:       "plan not covered",
			coupons:    []map[string]any{activeCoupon(map[string]any{"plans": []string{"achiever"}})},
			tier:       domain.PlanStarter,
			wantErr:    domain.ErrCouponNotApplicable,
			wantReason: "not_applicable",
		},
		{
			name:       "global cap reached",
			coupons:    []map[string]any{activeCoupon(map[string]any{"max_uses": 5, "used_count": 5})},
			wantErr:    domain.ErrCouponExhausted,
			wantReason: "exhausted",
		},
		{
			name:       "per-user cap reached",
			coupons:    []map[string]any{activeCoupon(nil)},
			uses:       []map[string]any{{"id": "use1"}},
			wantErr:    domain.ErrCouponUserExhausted,
			wantReason: "already_used",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier := tt.tier
			if tier == "" {
				tier = domain.PlanPro
			}
			v := newValidator(t, tt.coupons, tt.uses)
			_, err := v.Validate(context.Background(), "tok", "WELCOME20", tier, "u1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := Reason(err); got != tt.wantReason {
				t.Fatalf("Reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestValidateEmptyCode(t *testing.T) {
	v := newValidator(t, nil, nil)
	_, err := v.Validate(context.Background(), "tok", "   ", domain.PlanPro, "u1")
	if !errors.Is(err, domain.ErrCouponInvalid) {
		t.Fatalf("err = %v, want ErrCouponInvalid", err)
	}
}
