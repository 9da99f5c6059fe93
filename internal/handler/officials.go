package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/officials"
	"github.com/dukerupert/barangay/internal/photo"
	"github.com/dukerupert/barangay/internal/websocket"
	"github.com/dukerupert/barangay/internal/workflow"
)

// maxOfficialForm bounds the whole multipart body: one photo plus fields.
const maxOfficialForm = photo.MaxSize + 1<<20

type OfficialHandler struct {
	Base
	officials *officials.Service
}

func NewOfficialHandler(b Base, svc *officials.Service) *OfficialHandler {
	return &OfficialHandler{Base: b, officials: svc}
}

type officialsData struct {
	Chairman *model.ElectedOfficial
	Kagawad  []model.ElectedOfficial
	Slots    int
}

type officialForm struct {
	Action   string
	Editing  bool
	ID       int64
	Name     string
	Position string
	Order    string
	PhotoKey string
}

func (h *OfficialHandler) List(w http.ResponseWriter, r *http.Request) {
	roster, err := h.officials.Roster(r.Context())
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	var data officialsData
	for i := range roster {
		if roster[i].Position == model.PositionChairman {
			data.Chairman = &roster[i]
		} else {
			data.Kagawad = append(data.Kagawad, roster[i])
		}
	}
	data.Slots = model.MaxKagawad - len(data.Kagawad)
	h.render.Render(w, http.StatusOK, "officials.html", h.page(w, r, "Elected Officials", data))
}

func (h *OfficialHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, "official_form.html", h.page(w, r, "Add Official", officialForm{
		Action:   "/officials/new",
		Position: r.URL.Query().Get("position"),
	}))
}

// parseOfficialForm reads the multipart form. The caller must close the
// returned file, if any.
func parseOfficialForm(w http.ResponseWriter, r *http.Request) (officials.Input, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxOfficialForm)
	if err := r.ParseMultipartForm(maxOfficialForm); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return officials.Input{}, nil, &workflow.ValidationError{Problems: []workflow.FieldProblem{{
				Field: "photo", Message: fmt.Sprintf("Photo must be at most %d MB.", photo.MaxSize>>20),
			}}}
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return officials.Input{}, nil, &workflow.ValidationError{Problems: []workflow.FieldProblem{{
				Field: "form", Message: "The form could not be read.",
			}}}
		}
	}

	in := officials.Input{
		Name:     r.FormValue("name"),
		Position: r.FormValue("position"),
		Order:    r.FormValue("order"),
	}
	file, hdr, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return in, nil, nil
	case err != nil:
		return in, nil, fmt.Errorf("read photo: %w", err)
	}
	in.Photo = &officials.Upload{Filename: hdr.Filename, Body: file}
	return in, file, nil
}

func formFromInput(in officials.Input) officialForm {
	return officialForm{Name: in.Name, Position: in.Position, Order: in.Order}
}

func (h *OfficialHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, file, err := parseOfficialForm(w, r)
	if file != nil {
		defer file.Close()
	}
	form := formFromInput(in)
	form.Action = "/officials/new"
	if err != nil {
		h.formError(w, r, err, "official_form.html", h.page(w, r, "Add Official", form))
		return
	}

	o, err := h.officials.Add(r.Context(), auth.CallerFrom(r.Context()), in)
	if err != nil {
		h.formError(w, r, err, "official_form.html", h.page(w, r, "Add Official", form))
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityOfficial, "created", o.ID, map[string]any{"position": o.Position}))
	flashSuccess(w, fmt.Sprintf("%s added as %s.", o.Name, o.Position))
	http.Redirect(w, r, "/officials", http.StatusSeeOther)
}

func (h *OfficialHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	o, err := h.officials.Get(r.Context(), id)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}

	order := ""
	if o.Order != nil {
		order = fmt.Sprint(*o.Order)
	}
	h.render.Render(w, http.StatusOK, "official_form.html", h.page(w, r, "Edit Official", officialForm{
		Action:   fmt.Sprintf("/officials/%d/edit", id),
		Editing:  true,
		ID:       id,
		Name:     o.Name,
		Position: string(o.Position),
		Order:    order,
		PhotoKey: o.PhotoKey,
	}))
}

func (h *OfficialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	in, file, err := parseOfficialForm(w, r)
	if file != nil {
		defer file.Close()
	}
	form := formFromInput(in)
	form.Action = fmt.Sprintf("/officials/%d/edit", id)
	form.Editing = true
	form.ID = id
	if err != nil {
		h.formError(w, r, err, "official_form.html", h.page(w, r, "Edit Official", form))
		return
	}

	o, err := h.officials.Edit(r.Context(), auth.CallerFrom(r.Context()), id, in)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			h.errorPage(w, r, err)
			return
		}
		h.formError(w, r, err, "official_form.html", h.page(w, r, "Edit Official", form))
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityOfficial, "updated", o.ID, map[string]any{"position": o.Position}))
	flashSuccess(w, fmt.Sprintf("%s updated.", o.Name))
	http.Redirect(w, r, "/officials", http.StatusSeeOther)
}

func (h *OfficialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.officials.Delete(r.Context(), auth.CallerFrom(r.Context()), id); err != nil {
		h.fail(w, r, err, "/officials")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityOfficial, "deleted", id, nil))
	flashSuccess(w, "Official removed.")
	http.Redirect(w, r, "/officials", http.StatusSeeOther)
}
