package handler

import (
	"net/http"

	"github.com/dukerupert/barangay/internal/events"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/store"
)

type DashboardHandler struct {
	Base
	residents *store.ResidentStore
	events    *events.Service
}

func NewDashboardHandler(b Base, residents *store.ResidentStore, ev *events.Service) *DashboardHandler {
	return &DashboardHandler{Base: b, residents: residents, events: ev}
}

type dashboardData struct {
	Stats    *model.ResidentStats
	Upcoming []model.BarangayEvent
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.residents.Stats(r.Context())
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	upcoming, err := h.events.Upcoming(r.Context())
	if err != nil {
		h.errorPage(w, r, err)
		return
	}

	h.render.Render(w, http.StatusOK, "dashboard.html", h.page(w, r, "Dashboard", dashboardData{
		Stats:    stats,
		Upcoming: upcoming,
	}))
}

// Stats serves the dashboard counters and per-purok chart data as JSON.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.residents.Stats(r.Context())
	if err != nil {
		h.logger.Error("resident stats", "error", err)
		writeJSONError(w, err)
		return
	}
	if stats.ByPurok == nil {
		stats.ByPurok = []model.PurokCount{}
	}
	writeJSON(w, http.StatusOK, stats)
}
