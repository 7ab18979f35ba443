package handlers

import (
	"net/http"

	"server/internal/backend"
)

// Me recomputes and returns the full account view-model for the stored
// session. Anonymous callers get a 401, never a partial payload.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	ud, err := a.Accounts.LoadSession(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load account")
		return
	}
	if ud == nil {
		a.error(w, http.StatusUnauthorized, "no_session", "sign in first")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user": ud})
}

type updateProfileRequest struct {
	Name  string `json:"name" validate:"omitempty,min=2"`
	Phone string `json:"phone" validate:"omitempty,e164"`
}

// UpdateMe writes the editable profile fields and patches the local
// view-model only after the backend write succeeds.
func (a *App) UpdateMe(w http.ResponseWriter, r *http.Request) {
	env := a.currentSession(w)
	if env == nil {
		return
	}
	var req updateProfileRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" && req.Phone == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "nothing to update")
		return
	}

	patch := map[string]string{}
	if req.Name != "" {
		patch["name"] = req.Name
	}
	if req.Phone != "" {
		patch["phone"] = req.Phone
	}
	err := a.Backend.Update(r.Context(), env.AccessToken, "profiles", backend.Filters{"id": env.UserID}, patch)
	if err != nil {
		a.Logger.Warn().Err(err).Str("user_id", env.UserID).Msg("profile update failed")
		a.error(w, backendStatus(err), "update_failed", "could not save the profile")
		return
	}
	a.Accounts.ApplyProfile(req.Name, req.Phone)
	a.json(w, http.StatusOK, map[string]any{"user": a.Accounts.Current()})
}
