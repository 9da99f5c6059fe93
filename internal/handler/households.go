package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/websocket"
	"github.com/dukerupert/barangay/internal/workflow"
)

type HouseholdHandler struct {
	Base
	workflow   *workflow.Service
	households *store.HouseholdStore
	residents  *store.ResidentStore
}

func NewHouseholdHandler(b Base, wf *workflow.Service, households *store.HouseholdStore, residents *store.ResidentStore) *HouseholdHandler {
	return &HouseholdHandler{Base: b, workflow: wf, households: households, residents: residents}
}

type householdsData struct {
	Households []model.Household
}

type householdData struct {
	Household *model.Household
	Members   []model.Resident
	// Others are the households members can be moved to on delete.
	Others []model.Household
}

type householdForm struct {
	ID     int64
	Values model.HouseholdFields
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.households.List(r.Context())
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	h.render.Render(w, http.StatusOK, "households.html", h.page(w, r, "Households", householdsData{Households: households}))
}

// load fetches the household named by the path, rendering 404 when absent.
func (h *HouseholdHandler) load(w http.ResponseWriter, r *http.Request) (*model.Household, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return nil, false
	}
	hh, err := h.households.GetByID(r.Context(), id)
	if err != nil {
		h.errorPage(w, r, err)
		return nil, false
	}
	if hh == nil {
		h.NotFound(w, r)
		return nil, false
	}
	return hh, true
}

func (h *HouseholdHandler) Detail(w http.ResponseWriter, r *http.Request) {
	hh, ok := h.load(w, r)
	if !ok {
		return
	}
	members, err := h.residents.ListByHousehold(r.Context(), hh.ID)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}

	data := householdData{Household: hh, Members: members}
	if auth.IsAdmin(r.Context()) && len(members) > 0 {
		all, err := h.households.List(r.Context())
		if err != nil {
			h.errorPage(w, r, err)
			return
		}
		for _, o := range all {
			if o.ID != hh.ID {
				data.Others = append(data.Others, o)
			}
		}
	}
	h.render.Render(w, http.StatusOK, "household.html", h.page(w, r, "Household "+hh.HouseholdNo, data))
}

func (h *HouseholdHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	hh, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render.Render(w, http.StatusOK, "household_form.html", h.page(w, r, "Edit Household", householdForm{
		ID:     hh.ID,
		Values: hh.HouseholdFields,
	}))
}

func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	fields := model.HouseholdFields{
		HouseholdNo:      r.FormValue("household_no"),
		Region:           r.FormValue("region"),
		Province:         r.FormValue("province"),
		CityMunicipality: r.FormValue("city_municipality"),
		Barangay:         r.FormValue("barangay"),
		Purok:            r.FormValue("purok"),
	}

	hh, err := h.workflow.UpdateHousehold(r.Context(), auth.CallerFrom(r.Context()), id, fields)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			h.errorPage(w, r, err)
			return
		}
		h.formError(w, r, err, "household_form.html", h.page(w, r, "Edit Household", householdForm{ID: id, Values: fields}))
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityHousehold, "updated", hh.ID, nil))
	flashSuccess(w, fmt.Sprintf("Household %s updated.", hh.HouseholdNo))
	http.Redirect(w, r, "/households/"+strconv.FormatInt(hh.ID, 10), http.StatusSeeOther)
}

// Delete removes a household. An optional reassign_to moves its members to
// another household; otherwise they are left without one.
func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	back := "/households/" + strconv.FormatInt(id, 10)

	var reassignTo *int64
	if v := strings.TrimSpace(r.FormValue("reassign_to")); v != "" && v != "none" {
		target, err := strconv.ParseInt(v, 10, 64)
		if err != nil || target <= 0 {
			flashError(w, "Invalid household to move members to.")
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
		reassignTo = &target
	}

	if err := h.workflow.DeleteHousehold(r.Context(), auth.CallerFrom(r.Context()), id, reassignTo); err != nil {
		if statusFor(err) == http.StatusNotFound && reassignTo == nil {
			back = "/households"
		}
		h.fail(w, r, err, back)
		return
	}

	var extra map[string]any
	if reassignTo != nil {
		extra = map[string]any{"reassigned_to": *reassignTo}
	}
	h.broadcast(websocket.NewMessage(websocket.EntityHousehold, "deleted", id, extra))
	flashSuccess(w, "Household deleted.")
	http.Redirect(w, r, "/households", http.StatusSeeOther)
}
