package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dukerupert/barangay/internal/account"
	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/backup"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/websocket"
)

type SettingsHandler struct {
	Base
	accounts *account.Service
	backups  *backup.Manager
}

func NewSettingsHandler(b Base, accounts *account.Service, backups *backup.Manager) *SettingsHandler {
	return &SettingsHandler{Base: b, accounts: accounts, backups: backups}
}

// recentBackups is how many backups the settings page lists.
const recentBackups = 10

type settingsData struct {
	Operators   []model.Operator
	MinPassword int

	BackupsEnabled bool
	BackupStatus   backup.Status
	Backups        []model.Backup
}

// Page shows the password form to everyone and the user and office profile
// sections to administrators.
func (h *SettingsHandler) Page(w http.ResponseWriter, r *http.Request) {
	data := settingsData{MinPassword: account.MinPasswordLength}
	if auth.IsAdmin(r.Context()) {
		ops, err := h.accounts.List(r.Context(), auth.CallerFrom(r.Context()))
		if err != nil {
			h.errorPage(w, r, err)
			return
		}
		data.Operators = ops

		data.BackupsEnabled = h.backups.Enabled()
		data.BackupStatus = h.backups.Status()
		if data.Backups, err = h.backups.List(r.Context(), recentBackups); err != nil {
			h.errorPage(w, r, err)
			return
		}
	}
	h.render.Render(w, http.StatusOK, "settings.html", h.page(w, r, "System Settings", data))
}

func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	err := h.accounts.ChangePassword(r.Context(), ac.Caller(), ac.SessionID,
		r.FormValue("current_password"),
		r.FormValue("new_password"),
		r.FormValue("confirm_password"),
	)
	if err != nil {
		h.fail(w, r, err, "/settings")
		return
	}
	flashSuccess(w, "Password changed. Other sessions were signed out.")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (h *SettingsHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	op, err := h.accounts.CreateOperator(r.Context(), auth.CallerFrom(r.Context()),
		r.FormValue("username"),
		r.FormValue("password"),
		r.FormValue("role"),
	)
	if err != nil {
		h.fail(w, r, err, "/settings")
		return
	}
	h.broadcast(websocket.NewMessage(websocket.EntityOperator, "created", op.ID, nil).ForAdmins(0))
	flashSuccess(w, fmt.Sprintf("User %s created as %s.", op.Username, op.Role))
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (h *SettingsHandler) DeleteOperator(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid user id", sentinel.ErrValidation), "/settings")
		return
	}
	if err := h.accounts.DeleteOperator(r.Context(), auth.CallerFrom(r.Context()), id); err != nil {
		h.fail(w, r, err, "/settings")
		return
	}
	if h.hub != nil {
		if n := h.hub.Disconnect(id); n > 0 {
			h.logger.Info("closed live connections of deleted user", "operator_id", id, "connections", n)
		}
	}
	h.broadcast(websocket.NewMessage(websocket.EntityOperator, "deleted", id, nil).ForAdmins(0))
	flashSuccess(w, "User deleted.")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// UpdateProfile saves the office profile used to prefill household addresses.
func (h *SettingsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAdmin(r.Context()) {
		h.fail(w, r, fmt.Errorf("%w: only administrators can change the office profile", sentinel.ErrPermission), "/settings")
		return
	}
	profile := model.OfficeProfile{
		Barangay:         strings.TrimSpace(r.FormValue("barangay")),
		CityMunicipality: strings.TrimSpace(r.FormValue("city_municipality")),
		Province:         strings.TrimSpace(r.FormValue("province")),
		Region:           strings.TrimSpace(r.FormValue("region")),
	}
	if err := h.settings.SetOfficeProfile(r.Context(), profile); err != nil {
		h.fail(w, r, err, "/settings")
		return
	}
	h.logger.Info("office profile updated", "operator_id", auth.OperatorID(r.Context()))
	h.broadcast(websocket.NewMessage(websocket.EntitySettings, "updated", 0, nil))
	flashSuccess(w, "Office profile saved.")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
