package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func scanBackup(s scanner) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var createdBy sql.NullInt64
	var completedAt sql.NullTime
	err := s.Scan(&b.ID, &b.Filename, &b.SizeBytes, &b.Status, &errMsg, &createdBy, &b.CreatorName, &b.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	b.CreatedBy = int64Ptr(createdBy)
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

const backupCols = `b.id, b.filename, b.size_bytes, b.status, b.error_message, b.created_by, COALESCE(o.username, ''), b.created_at, b.completed_at`

const backupFrom = ` FROM backups b LEFT JOIN operators o ON o.id = b.created_by`

// Create records a pending backup. createdBy is nil for scheduled runs.
func (s *BackupStore) Create(ctx context.Context, filename string, createdBy *int64, createdAt time.Time) (*model.Backup, error) {
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO backups (filename, status, created_by, created_at) VALUES (?, ?, ?, ?)`,
		filename, model.BackupStatusPending, nullInt64(createdBy), createdAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: backup %s already exists", sentinel.ErrConflict, filename)
		}
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BackupStore) GetByID(ctx context.Context, id int64) (*model.Backup, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+backupCols+backupFrom+` WHERE b.id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

// List returns the most recent backups first.
func (s *BackupStore) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return s.query(ctx, "list backups",
		`SELECT `+backupCols+backupFrom+` ORDER BY b.created_at DESC, b.id DESC LIMIT ?`, limit)
}

// ListOlderThan returns backups created before t, oldest first.
func (s *BackupStore) ListOlderThan(ctx context.Context, t time.Time) ([]model.Backup, error) {
	return s.query(ctx, "list old backups",
		`SELECT `+backupCols+backupFrom+` WHERE b.created_at < ? ORDER BY b.created_at ASC`, t.UTC())
}

func (s *BackupStore) query(ctx context.Context, op, query string, args ...any) ([]model.Backup, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) MarkCompleted(ctx context.Context, id, size int64, completedAt time.Time) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE backups SET status = ?, size_bytes = ?, error_message = NULL, completed_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, size, completedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup %d completed: %w", id, err)
	}
	return nil
}

func (s *BackupStore) MarkFailed(ctx context.Context, id int64, msg string) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`,
		model.BackupStatusFailed, msg, id,
	)
	if err != nil {
		return fmt.Errorf("mark backup %d failed: %w", id, err)
	}
	return nil
}

func (s *BackupStore) Delete(ctx context.Context, id int64) error {
	if _, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete backup %d: %w", id, err)
	}
	return nil
}
