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

type ResidentHandler struct {
	Base
	workflow   *workflow.Service
	residents  *store.ResidentStore
	households *store.HouseholdStore
}

func NewResidentHandler(b Base, wf *workflow.Service, residents *store.ResidentStore, households *store.HouseholdStore) *ResidentHandler {
	return &ResidentHandler{Base: b, workflow: wf, residents: residents, households: households}
}

// residentFormFields are the posted resident and new-household fields.
var residentFormFields = []string{
	"last_name", "first_name", "middle_name", "gender", "age", "purok",
	"voter_status", "senior_citizen", "date_of_birth", "place_of_birth",
	"civil_status", "citizenship", "occupation", "household_select",
	"new_household_no", "new_region", "new_province", "new_city_municipality",
	"new_barangay", "new_purok",
}

type residentsData struct {
	Residents []model.Resident
	Search    string
}

type residentForm struct {
	Action     string
	Editing    bool
	ResidentID int64
	Values     map[string]string
	Households []model.Household
}

type residentData struct {
	Resident *model.Resident
}

func (h *ResidentHandler) List(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	residents, err := h.residents.List(r.Context(), search)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	h.render.Render(w, http.StatusOK, "residents.html", h.page(w, r, "Residents", residentsData{
		Residents: residents,
		Search:    search,
	}))
}

func (h *ResidentHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	res, err := h.residents.GetByID(r.Context(), id)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	if res == nil {
		h.NotFound(w, r)
		return
	}
	title := res.FirstName + " " + res.LastName
	h.render.Render(w, http.StatusOK, "resident.html", h.page(w, r, title, residentData{Resident: res}))
}

// form builds the resident form, prefilling new-household address fields
// from the office profile.
func (h *ResidentHandler) form(r *http.Request, page *Page, f residentForm) (residentForm, error) {
	households, err := h.households.List(r.Context())
	if err != nil {
		return f, err
	}
	f.Households = households
	if f.Values == nil {
		f.Values = map[string]string{}
	}
	defaults := map[string]string{
		"new_region":            page.Office.Region,
		"new_province":          page.Office.Province,
		"new_city_municipality": page.Office.CityMunicipality,
		"new_barangay":          page.Office.Barangay,
		"citizenship":           "Filipino",
	}
	for k, v := range defaults {
		if f.Values[k] == "" {
			f.Values[k] = v
		}
	}
	return f, nil
}

// renderForm shows the resident form. A non-nil err re-renders it as a
// rejected submission with err's status.
func (h *ResidentHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, title string, f residentForm, err error) {
	page := h.page(w, r, title, nil)
	f, ferr := h.form(r, &page, f)
	if ferr != nil {
		h.errorPage(w, r, ferr)
		return
	}
	page.Data = f
	if err != nil {
		h.formError(w, r, err, "resident_form.html", page)
		return
	}
	h.render.Render(w, status, "resident_form.html", page)
}

func (h *ResidentHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "Add Resident", residentForm{
		Action: "/residents/new",
		Values: map[string]string{"household_select": r.URL.Query().Get("household")},
	}, nil)
}

// parseResidentForm reads the posted resident. The returned values echo the
// form back on failure.
func parseResidentForm(r *http.Request) (workflow.ResidentInput, map[string]string, error) {
	values := make(map[string]string, len(residentFormFields))
	for _, f := range residentFormFields {
		values[f] = r.FormValue(f)
	}

	in := workflow.ResidentInput{
		LastName:      values["last_name"],
		FirstName:     values["first_name"],
		MiddleName:    values["middle_name"],
		Gender:        values["gender"],
		Age:           values["age"],
		Purok:         values["purok"],
		VoterStatus:   values["voter_status"],
		SeniorCitizen: values["senior_citizen"],
		DateOfBirth:   values["date_of_birth"],
		PlaceOfBirth:  values["place_of_birth"],
		CivilStatus:   values["civil_status"],
		Citizenship:   values["citizenship"],
		Occupation:    values["occupation"],
	}

	choice, err := workflow.ParseHouseholdChoice(values["household_select"], model.HouseholdFields{
		HouseholdNo:      values["new_household_no"],
		Region:           values["new_region"],
		Province:         values["new_province"],
		CityMunicipality: values["new_city_municipality"],
		Barangay:         values["new_barangay"],
		Purok:            values["new_purok"],
	})
	if err != nil {
		return in, values, err
	}
	in.Household = choice
	return in, values, nil
}

func (h *ResidentHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, values, err := parseResidentForm(r)
	form := residentForm{Action: "/residents/new", Values: values}
	if err != nil {
		h.renderForm(w, r, http.StatusOK, "Add Resident", form, err)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	result, err := h.workflow.SubmitResident(r.Context(), ac.Caller(), in)
	if err != nil {
		h.renderForm(w, r, http.StatusOK, "Add Resident", form, err)
		return
	}

	if result.Resident != nil {
		res := result.Resident
		h.broadcast(websocket.NewMessage(websocket.EntityResident, "created", res.ID, householdExtra(res.HouseholdID)))
		flashSuccess(w, fmt.Sprintf("%s %s was added.", res.FirstName, res.LastName))
		http.Redirect(w, r, "/residents/"+strconv.FormatInt(res.ID, 10), http.StatusSeeOther)
		return
	}

	sub := result.Submission
	h.broadcast(websocket.NewMessage(websocket.EntitySubmission, "created", sub.ID, map[string]any{
		"submitted_by": ac.Username,
	}).ForAdmins(sub.SubmittedBy))
	flashSuccess(w, fmt.Sprintf("%s %s was submitted for approval.", sub.FirstName, sub.LastName))
	http.Redirect(w, r, "/pending", http.StatusSeeOther)
}

func householdExtra(id *int64) map[string]any {
	if id == nil {
		return nil
	}
	return map[string]any{"household_id": *id}
}

// residentValues fills the edit form from a stored resident.
func residentValues(res *model.Resident) map[string]string {
	v := map[string]string{
		"last_name":        res.LastName,
		"first_name":       res.FirstName,
		"middle_name":      res.MiddleName,
		"gender":           res.Gender,
		"age":              strconv.Itoa(res.Age),
		"purok":            res.Purok,
		"voter_status":     res.VoterStatus,
		"senior_citizen":   res.SeniorCitizen,
		"date_of_birth":    res.DateOfBirthString(),
		"place_of_birth":   res.PlaceOfBirth,
		"civil_status":     res.CivilStatus,
		"citizenship":      res.Citizenship,
		"occupation":       res.Occupation,
		"household_select": "none",
	}
	if res.HouseholdID != nil {
		v["household_select"] = strconv.FormatInt(*res.HouseholdID, 10)
	}
	return v
}

func (h *ResidentHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	res, err := h.residents.GetByID(r.Context(), id)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	if res == nil {
		h.NotFound(w, r)
		return
	}
	h.renderForm(w, r, http.StatusOK, "Edit Resident", residentForm{
		Action:     fmt.Sprintf("/residents/%d/edit", id),
		Editing:    true,
		ResidentID: id,
		Values:     residentValues(res),
	}, nil)
}

func (h *ResidentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	in, values, err := parseResidentForm(r)
	form := residentForm{Action: fmt.Sprintf("/residents/%d/edit", id), Editing: true, ResidentID: id, Values: values}
	if err != nil {
		h.renderForm(w, r, http.StatusOK, "Edit Resident", form, err)
		return
	}

	res, err := h.workflow.UpdateResident(r.Context(), auth.CallerFrom(r.Context()), id, in)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			h.errorPage(w, r, err)
			return
		}
		h.renderForm(w, r, http.StatusOK, "Edit Resident", form, err)
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityResident, "updated", res.ID, householdExtra(res.HouseholdID)))
	flashSuccess(w, "Resident updated.")
	http.Redirect(w, r, "/residents/"+strconv.FormatInt(res.ID, 10), http.StatusSeeOther)
}

func (h *ResidentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.workflow.DeleteResident(r.Context(), auth.CallerFrom(r.Context()), id); err != nil {
		back := "/residents/" + strconv.FormatInt(id, 10)
		if statusFor(err) == http.StatusNotFound {
			back = "/residents"
		}
		h.fail(w, r, err, back)
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityResident, "deleted", id, nil))
	flashSuccess(w, "Resident deleted.")
	http.Redirect(w, r, "/residents", http.StatusSeeOther)
}
