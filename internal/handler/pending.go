package handler

import (
	"fmt"
	"net/http"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/websocket"
	"github.com/dukerupert/barangay/internal/workflow"
)

type PendingHandler struct {
	Base
	workflow *workflow.Service
}

func NewPendingHandler(b Base, wf *workflow.Service) *PendingHandler {
	return &PendingHandler{Base: b, workflow: wf}
}

type pendingData struct {
	Submissions []model.Submission
}

// List shows administrators every pending submission and other operators
// their own submissions of any status, newest first.
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.workflow.Submissions(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	title := "My Submissions"
	if auth.IsAdmin(r.Context()) {
		title = "Pending Residents"
	}
	h.render.Render(w, http.StatusOK, "pending.html", h.page(w, r, title, pendingData{Submissions: subs}))
}

// Review approves or rejects a submission.
func (h *PendingHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	action, err := workflow.ParseAction(r.PathValue("action"))
	if err != nil {
		h.fail(w, r, err, "/pending")
		return
	}

	result, err := h.workflow.Review(r.Context(), auth.CallerFrom(r.Context()), id, action)
	if err != nil {
		h.fail(w, r, err, "/pending")
		return
	}

	sub := result.Submission
	h.broadcast(websocket.NewMessage(websocket.EntitySubmission, string(sub.Status), sub.ID, map[string]any{
		"name": sub.FirstName + " " + sub.LastName,
	}).ForAdmins(sub.SubmittedBy))

	name := sub.FirstName + " " + sub.LastName
	if res := result.Resident; res != nil {
		h.broadcast(websocket.NewMessage(websocket.EntityResident, "created", res.ID, householdExtra(res.HouseholdID)))
		flashSuccess(w, fmt.Sprintf("%s was approved and added to the residents.", name))
	} else {
		flashSuccess(w, fmt.Sprintf("%s was rejected.", name))
	}
	http.Redirect(w, r, "/pending", http.StatusSeeOther)
}
