// Package handler serves the records application's pages and JSON
// endpoints. Handlers translate forms into service calls, map service errors
// to HTTP statuses and broadcast changes to connected clients.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/websocket"
	"github.com/dukerupert/barangay/internal/workflow"
)

const internalErrorMessage = "Something went wrong. Nothing was saved."

// Base carries what every page handler needs to render the shared layout.
type Base struct {
	render      *Renderer
	settings    *store.SettingsStore
	submissions *store.SubmissionStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewBase(rd *Renderer, settings *store.SettingsStore, submissions *store.SubmissionStore, hub *websocket.Hub, logger *slog.Logger) Base {
	return Base{render: rd, settings: settings, submissions: submissions, hub: hub, logger: logger}
}

// page builds the layout data for r. Lookup failures only degrade the header.
func (b *Base) page(w http.ResponseWriter, r *http.Request, title string, data any) Page {
	ctx := r.Context()
	p := Page{Title: title, Flash: popFlash(w, r), Data: data}
	p.Auth, _ = auth.FromContext(ctx)

	if office, err := b.settings.OfficeProfile(ctx); err != nil {
		b.logger.Warn("load office profile", "error", err)
	} else {
		p.Office = office
	}
	if p.IsAdmin() {
		if n, err := b.submissions.CountPending(ctx); err != nil {
			b.logger.Warn("count pending", "error", err)
		} else {
			p.Pending = n
		}
	}
	return p
}

func (b *Base) broadcast(msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(msg)
	}
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sentinel.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, sentinel.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sentinel.ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// userMessage renders err for display. Internal failures get a generic text.
func userMessage(err error) string {
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		msgs := make([]string, len(verr.Problems))
		for i, p := range verr.Problems {
			msgs[i] = p.Message
		}
		return strings.Join(msgs, " ")
	}

	if errors.Is(err, sentinel.ErrIntegrity) {
		return "The change could not be saved and was rolled back."
	}

	msg := err.Error()
	for _, s := range []error{sentinel.ErrValidation, sentinel.ErrConflict, sentinel.ErrNotFound, sentinel.ErrPermission} {
		if errors.Is(err, s) {
			msg = strings.TrimPrefix(msg, s.Error()+": ")
			return capitalize(msg) + "."
		}
	}
	return internalErrorMessage
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// fieldErrors indexes validation problems by form field.
func fieldErrors(err error) map[string]string {
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := make(map[string]string, len(verr.Problems))
	for _, p := range verr.Problems {
		if _, ok := out[p.Field]; !ok {
			out[p.Field] = p.Message
		}
	}
	return out
}

// fail reports err after a non-form action: a flash message and a redirect
// back to where the operator came from.
func (b *Base) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	if statusFor(err) == http.StatusInternalServerError {
		b.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	flashError(w, userMessage(err))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// formError re-renders a rejected form with the posted values, the problems
// found and the status matching err.
func (b *Base) formError(w http.ResponseWriter, r *http.Request, err error, name string, page Page) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		b.logger.Error("form failed", "path", r.URL.Path, "error", err)
	}
	page.Message = userMessage(err)
	page.Errors = fieldErrors(err)
	b.render.Render(w, status, name, page)
}

// errorPage renders the shared error template.
func (b *Base) errorPage(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		b.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	b.render.Render(w, status, "error.html", b.page(w, r, http.StatusText(status), errorData{
		Status:  status,
		Message: userMessage(err),
	}))
}

type errorData struct {
	Status  int
	Message string
}

// NotFound renders the 404 page for unmatched routes.
func (b *Base) NotFound(w http.ResponseWriter, r *http.Request) {
	b.render.Render(w, http.StatusNotFound, "error.html", b.page(w, r, "Not Found", errorData{
		Status:  http.StatusNotFound,
		Message: "The page you are looking for does not exist.",
	}))
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// pathID parses the {id} wildcard, rendering a 404 when it is not a number.
func (b *Base) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil || id <= 0 {
		b.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": userMessage(err)})
}
