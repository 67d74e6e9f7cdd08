package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/admindash/internal/security/middleware"
	"github.com/aryan0dhankhar/admindash/internal/service"
)

// DashboardHandler serves GET /api/dashboard/stats
type DashboardHandler struct {
	stats service.StatsSource
}

func NewDashboardHandler(stats service.StatsSource) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}
