package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dukerupert/barangay/internal/auth"
	"github.com/dukerupert/barangay/internal/backup"
	"github.com/dukerupert/barangay/internal/websocket"
)

type BackupHandler struct {
	Base
	backups *backup.Manager
}

func NewBackupHandler(b Base, backups *backup.Manager) *BackupHandler {
	return &BackupHandler{Base: b, backups: backups}
}

// Run takes a backup now and returns to the settings page.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := h.backups.RunNow(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "/settings")
		return
	}
	h.logger.Info("backup requested", "operator_id", auth.OperatorID(r.Context()), "backup_id", b.ID)
	h.broadcast(websocket.NewMessage(websocket.EntityBackup, "created", b.ID, nil).ForAdmins(0))
	flashSuccess(w, fmt.Sprintf("Backup %s saved.", b.Filename))
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// Download streams an encrypted archive. It can only be opened with the
// backup passphrase.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	b, body, err := h.backups.Open(r.Context(), auth.CallerFrom(r.Context()), id)
	if err != nil {
		h.errorPage(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(b.SizeBytes, 10))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Debug("write backup", "id", id, "error", err)
	}
}
