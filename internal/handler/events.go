package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/events"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/websocket"
)

const monthLayout = "2006-01"

type EventHandler struct {
	Base
	events *events.Service
	now    func() time.Time
}

func NewEventHandler(b Base, svc *events.Service) *EventHandler {
	return &EventHandler{Base: b, events: svc, now: time.Now}
}

type eventRow struct {
	model.BarangayEvent
	CanModify bool
}

type eventsData struct {
	Month    time.Time
	Prev     string
	Next     string
	Events   []eventRow
	Upcoming []model.BarangayEvent
}

type eventForm struct {
	Action      string
	Editing     bool
	ID          int64
	Title       string
	Description string
	Date        string
}

// parseMonth reads a YYYY-MM value, defaulting to the current month.
func (h *EventHandler) parseMonth(s string) (time.Time, error) {
	if s = strings.TrimSpace(s); s == "" {
		now := h.now()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month must be YYYY-MM", sentinel.ErrValidation)
	}
	return t, nil
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	month, err := h.parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	list, err := h.events.Month(r.Context(), month)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	upcoming, err := h.events.Upcoming(r.Context())
	if err != nil {
		h.errorPage(w, r, err)
		return
	}

	caller := auth.CallerFrom(r.Context())
	rows := make([]eventRow, len(list))
	for i := range list {
		rows[i] = eventRow{BarangayEvent: list[i], CanModify: events.CanModify(caller, &list[i])}
	}

	h.render.Render(w, http.StatusOK, "events.html", h.page(w, r, "Events", eventsData{
		Month:    month,
		Prev:     month.AddDate(0, -1, 0).Format(monthLayout),
		Next:     month.AddDate(0, 1, 0).Format(monthLayout),
		Events:   rows,
		Upcoming: upcoming,
	}))
}

// API serves one month of events as JSON for the calendar widget.
func (h *EventHandler) API(w http.ResponseWriter, r *http.Request) {
	month, err := h.parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeJSONError(w, err)
		return
	}
	list, err := h.events.Month(r.Context(), month)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeJSONError(w, err)
		return
	}
	if list == nil {
		list = []model.BarangayEvent{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *EventHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, "event_form.html", h.page(w, r, "New Event", eventForm{
		Action: "/events/new",
		Date:   r.URL.Query().Get("date"),
	}))
}

func readEventForm(r *http.Request) events.Input {
	return events.Input{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("event_date"),
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	in := readEventForm(r)
	e, err := h.events.Create(r.Context(), auth.CallerFrom(r.Context()), in)
	if err != nil {
		h.formError(w, r, err, "event_form.html", h.page(w, r, "New Event", eventForm{
			Action: "/events/new", Title: in.Title, Description: in.Description, Date: in.Date,
		}))
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityEvent, "created", e.ID, map[string]any{"date": e.EventDate.Format(model.DateLayout)}))
	flashSuccess(w, fmt.Sprintf("%q was added to the calendar.", e.Title))
	http.Redirect(w, r, "/events?month="+e.EventDate.Format(monthLayout), http.StatusSeeOther)
}

func (h *EventHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	if !events.CanModify(auth.CallerFrom(r.Context()), e) {
		h.errorPage(w, r, fmt.Errorf("%w: only administrators or the creator can edit this event", sentinel.ErrPermission))
		return
	}
	h.render.Render(w, http.StatusOK, "event_form.html", h.page(w, r, "Edit Event", eventForm{
		Action:      fmt.Sprintf("/events/%d/edit", id),
		Editing:     true,
		ID:          id,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.EventDate.Format(model.DateLayout),
	}))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	in := readEventForm(r)
	e, err := h.events.Edit(r.Context(), auth.CallerFrom(r.Context()), id, in)
	if err != nil {
		switch statusFor(err) {
		case http.StatusNotFound, http.StatusForbidden:
			h.errorPage(w, r, err)
		default:
			h.formError(w, r, err, "event_form.html", h.page(w, r, "Edit Event", eventForm{
				Action: fmt.Sprintf("/events/%d/edit", id), Editing: true, ID: id,
				Title: in.Title, Description: in.Description, Date: in.Date,
			}))
		}
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityEvent, "updated", e.ID, map[string]any{"date": e.EventDate.Format(model.DateLayout)}))
	flashSuccess(w, "Event updated.")
	http.Redirect(w, r, "/events?month="+e.EventDate.Format(monthLayout), http.StatusSeeOther)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.events.Delete(r.Context(), auth.CallerFrom(r.Context()), id); err != nil {
		h.fail(w, r, err, "/events")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityEvent, "deleted", id, nil))
	flashSuccess(w, "Event deleted.")
	http.Redirect(w, r, "/events", http.StatusSeeOther)
}
