// Package officials maintains the roster of elected barangay officials: one
// Chairman and up to seven Kagawad, each with an optional photo.
package officials

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/metrics"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/photo"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/workflow"
)

// Upload is a photo posted with an official.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Input is an official as posted by a form.
type Input struct {
	Name     string
	Position string
	Order    string
	Photo    *Upload
}

type Service struct {
	db      *sql.DB
	store   *store.OfficialStore
	photos  photo.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(db *sql.DB, photos photo.Storage, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		store:   store.NewOfficialStore(db),
		photos:  photos,
		metrics: m,
		logger:  logger.With("component", "officials"),
	}
}

// Roster returns the Chairman followed by the Kagawad in order.
func (s *Service) Roster(ctx context.Context) ([]model.ElectedOfficial, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*model.ElectedOfficial, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: official %d", sentinel.ErrNotFound, id)
	}
	return o, nil
}

type parsed struct {
	name     string
	position model.Position
	order    *int
}

func parse(in Input) (parsed, error) {
	var p parsed
	p.name = strings.TrimSpace(in.Name)
	p.position = model.Position(strings.TrimSpace(in.Position))

	verr := &workflow.ValidationError{}
	if p.name == "" {
		verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "name", Message: "Name is required."})
	}
	if !p.position.Valid() {
		verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "position", Message: "Position must be Chairman or Kagawad."})
	}
	if raw := strings.TrimSpace(in.Order); raw != "" && p.position == model.PositionKagawad {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "order", Message: "Order must be a positive whole number."})
		} else {
			p.order = &n
		}
	}
	if in.Photo != nil && !photo.Allowed(in.Photo.Filename) {
		verr.Problems = append(verr.Problems, workflow.FieldProblem{Field: "photo", Message: "Photo must be png, jpg, jpeg or gif."})
	}
	if len(verr.Problems) > 0 {
		return parsed{}, verr
	}
	return p, nil
}

// checkBounds enforces one Chairman and at most MaxKagawad Kagawad, not
// counting the official being edited. It returns the number of other
// officials in the position.
func (s *Service) checkBounds(ctx context.Context, position model.Position, excludeID int64) (int, error) {
	n, err := s.store.CountByPosition(ctx, position, excludeID)
	if err != nil {
		return 0, err
	}
	switch {
	case position == model.PositionChairman && n >= 1:
		return n, fmt.Errorf("%w: a Chairman already exists", sentinel.ErrConflict)
	case position == model.PositionKagawad && n >= model.MaxKagawad:
		return n, fmt.Errorf("%w: there are already %d Kagawad", sentinel.ErrConflict, model.MaxKagawad)
	}
	return n, nil
}

// storePhoto uploads a photo and returns its key, or "" when there is none.
func (s *Service) storePhoto(ctx context.Context, up *Upload) (string, error) {
	if up == nil {
		return "", nil
	}
	key, err := photo.NewKey(up.Filename)
	if err != nil {
		return "", err
	}
	if err := s.photos.Put(ctx, key, photo.ContentType(key), up.Body); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return key, nil
}

// releasePhoto deletes a photo that is no longer referenced. Failures are
// logged, not returned.
func (s *Service) releasePhoto(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.photos.Delete(ctx, key); err != nil {
		s.logger.Warn("release photo", "key", key, "error", err)
	}
}

// Add creates an official. A Kagawad without an explicit order is placed
// after the existing ones.
func (s *Service) Add(ctx context.Context, caller workflow.Caller, in Input) (*model.ElectedOfficial, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can manage officials", sentinel.ErrPermission)
	}
	p, err := parse(in)
	if err != nil {
		return nil, err
	}

	key, err := s.storePhoto(ctx, in.Photo)
	if err != nil {
		return nil, err
	}

	var created *model.ElectedOfficial
	err = database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		n, err := s.checkBounds(ctx, p.position, 0)
		if err != nil {
			return err
		}
		if p.position == model.PositionKagawad && p.order == nil {
			next := n + 1
			p.order = &next
		}
		created, err = s.store.Create(ctx, model.ElectedOfficial{
			Name:     p.name,
			Position: p.position,
			Order:    p.order,
			PhotoKey: key,
		})
		return err
	})
	if err != nil {
		s.releasePhoto(ctx, key)
		return nil, err
	}

	s.metrics.IncOfficialChange("add")
	s.logger.Info("official added", "official_id", created.ID, "position", created.Position, "operator_id", caller.OperatorID)
	return created, nil
}

// Edit updates an official. A new photo replaces and releases the old one.
func (s *Service) Edit(ctx context.Context, caller workflow.Caller, id int64, in Input) (*model.ElectedOfficial, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can manage officials", sentinel.ErrPermission)
	}
	p, err := parse(in)
	if err != nil {
		return nil, err
	}

	key, err := s.storePhoto(ctx, in.Photo)
	if err != nil {
		return nil, err
	}

	var updated *model.ElectedOfficial
	var oldKey string
	err = database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: official %d", sentinel.ErrNotFound, id)
		}
		if _, err := s.checkBounds(ctx, p.position, id); err != nil {
			return err
		}

		next := *existing
		next.Name = p.name
		next.Position = p.position
		next.Order = p.order
		if key != "" {
			oldKey = existing.PhotoKey
			next.PhotoKey = key
		}
		updated, err = s.store.Update(ctx, next)
		return err
	})
	if err != nil {
		s.releasePhoto(ctx, key)
		return nil, err
	}

	s.releasePhoto(ctx, oldKey)
	s.metrics.IncOfficialChange("edit")
	s.logger.Info("official updated", "official_id", id, "operator_id", caller.OperatorID)
	return updated, nil
}

// Delete removes an official and releases their photo.
func (s *Service) Delete(ctx context.Context, caller workflow.Caller, id int64) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: only administrators can manage officials", sentinel.ErrPermission)
	}
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: official %d", sentinel.ErrNotFound, id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.releasePhoto(ctx, existing.PhotoKey)
	s.metrics.IncOfficialChange("delete")
	s.logger.Info("official deleted", "official_id", id, "operator_id", caller.OperatorID)
	return nil
}
