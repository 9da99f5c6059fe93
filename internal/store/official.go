package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type OfficialStore struct {
	db *sql.DB
}

func NewOfficialStore(db *sql.DB) *OfficialStore {
	return &OfficialStore{db: db}
}

func scanOfficial(s scanner) (*model.ElectedOfficial, error) {
	var o model.ElectedOfficial
	var position string
	var order sql.NullInt64
	var photoKey sql.NullString
	err := s.Scan(&o.ID, &o.Name, &position, &order, &photoKey, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Position = model.Position(position)
	o.Order = intPtr(order)
	o.PhotoKey = photoKey.String
	return &o, nil
}

const officialCols = `id, name, position, sort_order, photo_key, created_at, updated_at`

// Create inserts an official. A second Chairman yields sentinel.ErrConflict.
func (s *OfficialStore) Create(ctx context.Context, o model.ElectedOfficial) (*model.ElectedOfficial, error) {
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO elected_officials (name, position, sort_order, photo_key) VALUES (?, ?, ?, ?)`,
		o.Name, string(o.Position), nullInt(o.Order), nullString(o.PhotoKey),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: a Chairman already exists", sentinel.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert official: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *OfficialStore) GetByID(ctx context.Context, id int64) (*model.ElectedOfficial, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+officialCols+` FROM elected_officials WHERE id = ?`, id)
	o, err := scanOfficial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get official: %w", err)
	}
	return o, nil
}

// List returns the Chairman first, then Kagawad by order. Kagawad without an
// order sort last.
func (s *OfficialStore) List(ctx context.Context) ([]model.ElectedOfficial, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+officialCols+` FROM elected_officials
		 ORDER BY CASE position WHEN 'Chairman' THEN 0 ELSE 1 END,
		          sort_order IS NULL, sort_order ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list officials: %w", err)
	}
	defer rows.Close()

	var officials []model.ElectedOfficial
	for rows.Next() {
		o, err := scanOfficial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan official: %w", err)
		}
		officials = append(officials, *o)
	}
	return officials, rows.Err()
}

// CountByPosition counts officials holding position, ignoring excludeID
// (pass 0 to count everyone).
func (s *OfficialStore) CountByPosition(ctx context.Context, position model.Position, excludeID int64) (int, error) {
	var n int
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM elected_officials WHERE position = ? AND id != ?`,
		string(position), excludeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count officials: %w", err)
	}
	return n, nil
}

func (s *OfficialStore) Update(ctx context.Context, o model.ElectedOfficial) (*model.ElectedOfficial, error) {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE elected_officials SET name = ?, position = ?, sort_order = ?, photo_key = ?, updated_at = ?
		 WHERE id = ?`,
		o.Name, string(o.Position), nullInt(o.Order), nullString(o.PhotoKey), now(), o.ID,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: a Chairman already exists", sentinel.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update official: %w", err)
	}
	return s.GetByID(ctx, o.ID)
}

func (s *OfficialStore) Delete(ctx context.Context, id int64) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM elected_officials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete official: %w", err)
	}
	return nil
}
