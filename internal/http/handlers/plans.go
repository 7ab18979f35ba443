package handlers

import (
	"net/http"
)

// PlansList serves the storefront table, ordered by price.
func (a *App) PlansList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"plans": a.Plans.Snapshot()})
}
