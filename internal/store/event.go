package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(s scanner) (*model.BarangayEvent, error) {
	var e model.BarangayEvent
	var date string
	err := s.Scan(&e.ID, &e.Title, &e.Description, &date, &e.CreatedBy, &e.CreatorName, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.EventDate, err = time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse event date %q: %w", date, err)
	}
	return &e, nil
}

const eventCols = `e.id, e.title, e.description, e.event_date, e.created_by, COALESCE(o.username, ''), e.created_at, e.updated_at`

const eventFrom = ` FROM barangay_events e LEFT JOIN operators o ON o.id = e.created_by`

func (s *EventStore) Create(ctx context.Context, title, description string, date time.Time, createdBy int64) (*model.BarangayEvent, error) {
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO barangay_events (title, description, event_date, created_by) VALUES (?, ?, ?, ?)`,
		title, description, date.Format(model.DateLayout), createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*model.BarangayEvent, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+eventCols+eventFrom+` WHERE e.id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListByDateRange returns events on or after start and before end, ordered by
// date.
func (s *EventStore) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.BarangayEvent, error) {
	return s.query(ctx, "list events by date range",
		`SELECT `+eventCols+eventFrom+` WHERE e.event_date >= ? AND e.event_date < ? ORDER BY e.event_date ASC, e.id ASC`,
		start.Format(model.DateLayout), end.Format(model.DateLayout),
	)
}

// ListMonth returns the events in the calendar month containing t.
func (s *EventStore) ListMonth(ctx context.Context, t time.Time) ([]model.BarangayEvent, error) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.ListByDateRange(ctx, start, start.AddDate(0, 1, 0))
}

// ListUpcoming returns up to limit events dated today or later.
func (s *EventStore) ListUpcoming(ctx context.Context, today time.Time, limit int) ([]model.BarangayEvent, error) {
	return s.query(ctx, "list upcoming events",
		`SELECT `+eventCols+eventFrom+` WHERE e.event_date >= ? ORDER BY e.event_date ASC, e.id ASC LIMIT ?`,
		today.Format(model.DateLayout), limit,
	)
}

func (s *EventStore) query(ctx context.Context, op, query string, args ...any) ([]model.BarangayEvent, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []model.BarangayEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(ctx context.Context, id int64, title, description string, date time.Time) (*model.BarangayEvent, error) {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE barangay_events SET title = ?, description = ?, event_date = ?, updated_at = ? WHERE id = ?`,
		title, description, date.Format(model.DateLayout), now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM barangay_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *EventStore) CountByOperator(ctx context.Context, operatorID int64) (int, error) {
	var n int
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM barangay_events WHERE created_by = ?`, operatorID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events by operator: %w", err)
	}
	return n, nil
}
