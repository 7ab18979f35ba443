// Package admin gates the admin surface. Admin status is never cached: every
// guarded request re-derives it from the caller's token against the admins
// table, so a revoked admin loses access on their next request.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"server/internal/backend"
	"server/internal/domain"
)

type adminRow struct {
	UserID string `json:"user_id"`
}

// Guard authorizes requests against the admins table.
type Guard struct {
	backend *backend.Client
	logger  zerolog.Logger
}

func NewGuard(client *backend.Client, logger zerolog.Logger) *Guard {
	return &Guard{backend: client, logger: logger}
}

// Check verifies that the token's subject has an admins row. The lookup runs
// under the caller's own bearer, so row-level policy on the backend is the
// real authority; this side only interprets the answer.
func (g *Guard) Check(ctx context.Context, token string) error {
	sub, err := subjectOf(token)
	if err != nil {
		return domain.ErrUnauthorized
	}
	var rows []adminRow
	if err := g.backend.Select(ctx, token, "admins", "user_id", backend.Filters{"user_id": sub}, &rows); err != nil {
		g.logger.Warn().Err(err).Msg("admin lookup failed")
		return domain.ErrForbidden
	}
	if len(rows) == 0 {
		return domain.ErrForbidden
	}
	return nil
}

// Middleware rejects requests whose bearer token does not belong to an admin.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeDenied(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if err := g.Check(r.Context(), token); err != nil {
			status, code := http.StatusForbidden, "forbidden"
			if errors.Is(err, domain.ErrUnauthorized) {
				status, code = http.StatusUnauthorized, "unauthorized"
			}
			writeDenied(w, status, code, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// subjectOf pulls the sub claim without verifying the signature. The backend
// verifies tokens itself on the admins lookup; a forged sub just fails there.
func subjectOf(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func writeDenied(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
