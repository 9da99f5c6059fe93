// Package backup takes encrypted snapshots of the records database and keeps
// them in object storage, local disk or an S3-compatible bucket, with a
// ledger row per run and age-based retention.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukerupert/barangay/internal/metrics"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/photo"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/workflow"
)

// DefaultRetention is how long archives are kept when Config leaves it unset.
const DefaultRetention = 30 * 24 * time.Hour

const contentType = "application/octet-stream"

var (
	// ErrDisabled is returned when no passphrase or destination is configured.
	ErrDisabled = fmt.Errorf("%w: backups are not configured", sentinel.ErrConflict)
	// ErrRunning is returned when a backup is already in progress.
	ErrRunning = fmt.Errorf("%w: a backup is already running", sentinel.ErrConflict)
)

// Config holds backup manager configuration.
type Config struct {
	Passphrase string
	// Retention is the age after which archives are removed.
	Retention time.Duration
	// Interval between scheduled runs. Zero leaves scheduling off.
	Interval time.Duration
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager snapshots, encrypts and stores database backups.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	status   Status
	callback StatusCallback

	db      *sql.DB
	store   *store.BackupStore
	dest    photo.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a backup manager. It is disabled when the passphrase is
// empty or dest is nil.
func NewManager(cfg Config, db *sql.DB, dest photo.Storage, m *metrics.Metrics, logger *slog.Logger, callback StatusCallback) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	mgr := &Manager{
		cfg:      cfg,
		callback: callback,
		db:       db,
		store:    store.NewBackupStore(db),
		dest:     dest,
		metrics:  m,
		logger:   logger.With("component", "backup"),
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.Passphrase != "" && dest != nil {
		mgr.status.State = StateIdle
	}
	return mgr
}

// Enabled reports whether backups can run.
func (m *Manager) Enabled() bool {
	return m.cfg.Passphrase != "" && m.dest != nil
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// begin marks a run as started, or reports why one cannot start.
func (m *Manager) begin() error {
	if !m.Enabled() {
		return ErrDisabled
	}
	m.mu.Lock()
	if m.status.InProgress {
		m.mu.Unlock()
		return ErrRunning
	}
	s := m.status
	s.State, s.InProgress, s.Error = StateRunning, true, ""
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
	return nil
}

// RunNow takes a backup on behalf of an admin.
func (m *Manager) RunNow(ctx context.Context, caller workflow.Caller) (*model.Backup, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can run backups", sentinel.ErrPermission)
	}
	id := caller.OperatorID
	return m.run(ctx, &id)
}

func (m *Manager) run(ctx context.Context, createdBy *int64) (*model.Backup, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}

	started := m.now().UTC()
	filename := fmt.Sprintf("backup-%s.db.enc", started.Format("20060102T150405Z"))
	record, err := m.store.Create(ctx, filename, createdBy, started)
	if err != nil {
		m.finish(nil, 0, err)
		return nil, err
	}

	size, err := m.snapshot(ctx, filename)
	if err != nil {
		if merr := m.store.MarkFailed(context.WithoutCancel(ctx), record.ID, err.Error()); merr != nil {
			m.logger.Error("record failed backup", "id", record.ID, "error", merr)
		}
		m.finish(nil, 0, err)
		return nil, err
	}

	completed := m.now().UTC()
	if err := m.store.MarkCompleted(ctx, record.ID, size, completed); err != nil {
		m.finish(nil, 0, err)
		return nil, err
	}
	m.finish(&completed, size, nil)
	m.logger.Info("backup completed", "id", record.ID, "filename", filename, "bytes", size)

	return m.store.GetByID(ctx, record.ID)
}

func (m *Manager) finish(completed *time.Time, size int64, err error) {
	s := m.Status()
	s.InProgress = false
	if err != nil {
		m.logger.Error("backup failed", "error", err)
		m.metrics.ObserveBackup("failed", 0)
		s.State, s.Error = StateError, err.Error()
	} else {
		m.metrics.ObserveBackup("completed", size)
		s.State, s.Error, s.LastBackup = StateIdle, "", completed
	}
	m.setStatus(s)
}

// snapshot copies the database with VACUUM INTO, encrypts the copy and puts
// it at key in the destination. It returns the stored size.
func (m *Manager) snapshot(ctx context.Context, key string) (int64, error) {
	dir, err := os.MkdirTemp("", "barangay-backup-*")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dbCopy := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, dbCopy); err != nil {
		return 0, fmt.Errorf("snapshot database: %w", err)
	}

	plain, err := os.ReadFile(dbCopy)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Encrypt(plain, m.cfg.Passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt snapshot: %w", err)
	}

	if err := m.dest.Put(ctx, key, contentType, bytes.NewReader(sealed)); err != nil {
		return 0, fmt.Errorf("store snapshot: %w", err)
	}
	return int64(len(sealed)), nil
}

// List returns the most recent backups first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.store.List(ctx, limit)
}

// Open streams the encrypted archive of a completed backup.
func (m *Manager) Open(ctx context.Context, caller workflow.Caller, id int64) (*model.Backup, io.ReadCloser, error) {
	if !caller.IsAdmin() {
		return nil, nil, fmt.Errorf("%w: only admins can download backups", sentinel.ErrPermission)
	}
	if !m.Enabled() {
		return nil, nil, ErrDisabled
	}
	record, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, fmt.Errorf("%w: backup %d", sentinel.ErrNotFound, id)
	}
	if record.Status != model.BackupStatusCompleted {
		return nil, nil, fmt.Errorf("%w: backup %d is %s", sentinel.ErrConflict, id, record.Status)
	}

	body, err := m.dest.Open(ctx, record.Filename)
	if errors.Is(err, photo.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: archive for backup %d is missing", sentinel.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}
	return record, body, nil
}

// Cleanup deletes backups older than the retention period, archive first.
// A row whose archive cannot be removed is kept for the next pass.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if !m.Enabled() {
		return 0, nil
	}
	old, err := m.store.ListOlderThan(ctx, m.now().Add(-m.cfg.Retention))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range old {
		if b.Status == model.BackupStatusPending && m.Status().InProgress {
			continue
		}
		if err := m.dest.Delete(ctx, b.Filename); err != nil {
			m.logger.Warn("delete backup archive", "filename", b.Filename, "error", err)
			continue
		}
		if err := m.store.Delete(ctx, b.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("removed old backups", "count", removed)
	}
	return removed, nil
}

// Loop runs scheduled backups and retention until ctx is cancelled. It
// returns at once when backups are disabled or unscheduled.
func (m *Manager) Loop(ctx context.Context) error {
	if !m.Enabled() || m.cfg.Interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.run(ctx, nil); err != nil && !errors.Is(err, ErrRunning) {
				m.logger.Warn("scheduled backup", "error", err)
			}
			if _, err := m.Cleanup(ctx); err != nil {
				m.logger.Warn("backup cleanup", "error", err)
			}
		}
	}
}

// Restore decrypts an archive and replaces the database file at dbPath with
// it. The server must not be running against dbPath.
func Restore(src io.Reader, passphrase, dbPath string) error {
	sealed, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	plain, err := Decrypt(sealed, passphrase)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".restore-*.db")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(plain); err != nil {
		tmp.Close()
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close restored db: %w", err)
	}

	if err := checkIntegrity(tmp.Name()); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: integrity check: %v", sentinel.ErrValidation, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: integrity check failed: %s", sentinel.ErrValidation, result)
	}
	return nil
}
