package handlers

import (
	"context"
	"net/http"
	"time"

	"server/internal/backend"
	"server/internal/session"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}

	tok, err := a.Backend.PasswordGrant(r.Context(), req.Email, req.Password)
	if err != nil {
		status := backendStatus(err)
		if status == http.StatusUnauthorized {
			a.error(w, status, "invalid_credentials", "email or password is incorrect")
			return
		}
		a.Logger.Error().Err(err).Msg("password grant failed")
		a.error(w, status, "auth_unavailable", "sign-in is unavailable right now")
		return
	}

	if err := a.saveSession(tok, req.Remember); err != nil {
		a.Logger.Error().Err(err).Msg("session save failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist session")
		return
	}

	ud, _ := a.Accounts.LoadSession(r.Context())
	a.json(w, http.StatusOK, map[string]any{"user": ud})
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Clear()
	_, _ = a.Accounts.LoadSession(r.Context())
	a.json(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

type otpSendRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

func (a *App) OTPSend(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Functions.OTPSend(r.Context(), req.Phone); err != nil {
		a.Logger.Warn().Err(err).Msg("otp send failed")
		a.error(w, backendStatus(err), "otp_send_failed", "could not send the code")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type otpVerifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (a *App) OTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !a.decode(w, r, &req) {
		return
	}
	verification, err := a.Functions.OTPVerify(r.Context(), req.Phone, req.Code)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "otp_rejected", "the code did not match")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"verification_token": verification})
}

type registerRequest struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Phone             string `json:"phone" validate:"required,e164"`
	Password          string `json:"password" validate:"required,min=8"`
	VerificationToken string `json:"verification_token" validate:"required"`
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decode(w, r, &req) {
		return
	}
	meta := map[string]any{
		"name":               req.Name,
		"phone":              req.Phone,
		"verification_token": req.VerificationToken,
	}
	tok, err := a.Backend.SignUp(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		if backend.StatusOf(err) == http.StatusConflict {
			a.error(w, http.StatusConflict, "email_taken", "an account with this email already exists")
			return
		}
		a.Logger.Error().Err(err).Msg("signup failed")
		a.error(w, backendStatus(err), "signup_failed", "could not create the account")
		return
	}

	// the backend may require email confirmation before issuing tokens
	if tok.AccessToken == "" {
		a.json(w, http.StatusCreated, map[string]string{"status": "confirmation_pending"})
		return
	}
	if err := a.saveSession(tok, false); err != nil {
		a.Logger.Error().Err(err).Msg("session save failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist session")
		return
	}
	ud, _ := a.Accounts.LoadSession(r.Context())
	a.json(w, http.StatusCreated, map[string]any{"user": ud})
}

type resetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (a *App) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Functions.ResetPassword(r.Context(), req.Email); err != nil {
		a.Logger.Warn().Err(err).Msg("reset password failed")
	}
	// always accepted so the endpoint does not leak which emails exist
	a.json(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// AdminLogin authenticates and then re-derives admin standing before a session
// is stored. A valid account without an admins row is rejected outright.
func (a *App) AdminLogin(adminCheck func(ctx context.Context, token string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !a.decode(w, r, &req) {
			return
		}
		tok, err := a.Backend.PasswordGrant(r.Context(), req.Email, req.Password)
		if err != nil {
			a.error(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
			return
		}
		if err := adminCheck(r.Context(), tok.AccessToken); err != nil {
			a.error(w, http.StatusForbidden, "not_admin", "admin access required")
			return
		}
		if err := a.saveSession(tok, false); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to persist session")
			return
		}
		a.json(w, http.StatusOK, map[string]string{
			"status":       "ok",
			"access_token": tok.AccessToken,
		})
	}
}

func (a *App) saveSession(tok *backend.TokenResponse, remember bool) error {
	expiresAt := tok.ExpiresAt
	if expiresAt == 0 && tok.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).Unix()
	}
	tier := session.TierEphemeral
	if remember {
		tier = session.TierDurable
	}
	return a.Sessions.Save(&session.Envelope{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		UserID:       tok.User.ID,
		Email:        tok.User.Email,
		Tier:         tier,
	})
}
