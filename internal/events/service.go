// Package events manages the barangay activity calendar.
package events

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/workflow"
)

const (
	maxTitleLength = 200
	// UpcomingLimit is how many events the dashboard shows.
	UpcomingLimit = 5
)

// Input is an event as posted by a form.
type Input struct {
	Title       string
	Description string
	Date        string
}

type Service struct {
	db     *sql.DB
	store  *store.EventStore
	now    func() time.Time
	logger *slog.Logger
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		store:  store.NewEventStore(db),
		now:    time.Now,
		logger: logger.With("component", "events"),
	}
}

func parse(in Input) (title, description string, date time.Time, err error) {
	verr := &workflow.ValidationError{}
	title = strings.TrimSpace(in.Title)
	description = strings.TrimSpace(in.Description)

	switch {
	case title == "":
		verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "title", Message: "Title is required."})
	case len(title) > maxTitleLength:
		verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "title", Message: fmt.Sprintf("Title must be at most %d characters.", maxTitleLength)})
	}

	date, perr := time.Parse(model.DateLayout, strings.TrimSpace(in.Date))
	if perr != nil {
		verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "event_date", Message: "Event date must be YYYY-MM-DD."})
	}

	if len(verr.Problems) > 0 {
		return "", "", time.Time{}, verr
	}
	return title, description, date, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.BarangayEvent, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: event %d", sentinel.ErrNotFound, id)
	}
	return e, nil
}

// Month lists the events in the month containing t.
func (s *Service) Month(ctx context.Context, t time.Time) ([]model.BarangayEvent, error) {
	return s.store.ListMonth(ctx, t)
}

// Upcoming lists the next events from today on.
func (s *Service) Upcoming(ctx context.Context) ([]model.BarangayEvent, error) {
	return s.store.ListUpcoming(ctx, s.now(), UpcomingLimit)
}

// Create records an event owned by the caller. Any operator may create one.
func (s *Service) Create(ctx context.Context, caller workflow.Caller, in Input) (*model.BarangayEvent, error) {
	title, desc, date, err := parse(in)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Create(ctx, title, desc, date, caller.OperatorID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", e.ID, "date", e.EventDate.Format(model.DateLayout), "created_by", caller.OperatorID)
	return e, nil
}

// CanModify reports whether caller may edit or delete e.
func CanModify(caller workflow.Caller, e *model.BarangayEvent) bool {
	return caller.IsAdmin() || (e != nil && e.CreatedBy == caller.OperatorID)
}

// Edit changes an event. Only administrators and the creator may edit.
func (s *Service) Edit(ctx context.Context, caller workflow.Caller, id int64, in Input) (*model.BarangayEvent, error) {
	title, desc, date, err := parse(in)
	if err != nil {
		return nil, err
	}

	var updated *model.BarangayEvent
	err = database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		e, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if !CanModify(caller, e) {
			return fmt.Errorf("%w: only administrators or the creator can edit this event", sentinel.ErrPermission)
		}
		updated, err = s.store.Update(ctx, id, title, desc, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event updated", "event_id", id)
	return updated, nil
}

// Delete removes an event. Only administrators and the creator may delete.
func (s *Service) Delete(ctx context.Context, caller workflow.Caller, id int64) error {
	err := database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		e, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if !CanModify(caller, e) {
			return fmt.Errorf("%w: only administrators or the creator can delete this event", sentinel.ErrPermission)
		}
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("event deleted", "event_id", id)
	return nil
}
