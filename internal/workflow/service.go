// Package workflow implements resident intake and the review of pending
// submissions. Every operation takes the caller explicitly; nothing is read
// from request state.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/metrics"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
)

type Service struct {
	db          *sql.DB
	households  *store.HouseholdStore
	residents   *store.ResidentStore
	submissions *store.SubmissionStore
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewService(db *sql.DB, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		households:  store.NewHouseholdStore(db),
		residents:   store.NewResidentStore(db),
		submissions: store.NewSubmissionStore(db),
		metrics:     m,
		logger:      logger.With("component", "workflow"),
	}
}

// IntakeResult carries the outcome of SubmitResident. Exactly one field is
// set: Resident for administrators, Submission for everyone else.
type IntakeResult struct {
	Resident   *model.Resident
	Submission *model.Submission
}

// SubmitResident validates a resident payload. Administrators get the
// resident (and any new household) written immediately in one transaction.
// Other operators get a pending submission and the registries stay untouched.
func (s *Service) SubmitResident(ctx context.Context, caller Caller, in ResidentInput) (*IntakeResult, error) {
	in.Household = normalizeChoice(in.Household)
	fields, err := Validate(in)
	if err != nil {
		return nil, err
	}

	if caller.IsAdmin() {
		var created *model.Resident
		err := database.RunInTx(ctx, s.db, func(ctx context.Context) error {
			householdID, err := s.resolveChoice(ctx, in.Household)
			if err != nil {
				return err
			}
			created, err = s.residents.Create(ctx, fields, householdID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.metrics.IncIntake("direct")
		s.logger.Info("resident added", "resident_id", created.ID, "operator_id", caller.OperatorID)
		return &IntakeResult{Resident: created}, nil
	}

	var householdID *int64
	var newHousehold *model.HouseholdFields
	switch c := in.Household.(type) {
	case ExistingHousehold:
		h, err := s.households.GetByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, fmt.Errorf("%w: household %d", sentinel.ErrNotFound, c.ID)
		}
		householdID = &h.ID
	case NewHousehold:
		nh := c.Fields
		newHousehold = &nh
	}

	sub, err := s.submissions.Create(ctx, fields, householdID, newHousehold, caller.OperatorID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncIntake("pending")
	s.logger.Info("resident submitted for review", "submission_id", sub.ID, "operator_id", caller.OperatorID)
	return &IntakeResult{Submission: sub}, nil
}

// resolveChoice turns a household choice into a household id, creating the
// household for NewHousehold. It must run inside a transaction.
func (s *Service) resolveChoice(ctx context.Context, choice HouseholdChoice) (*int64, error) {
	switch c := choice.(type) {
	case ExistingHousehold:
		h, err := s.households.GetByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, fmt.Errorf("%w: household %d", sentinel.ErrNotFound, c.ID)
		}
		return &h.ID, nil
	case NewHousehold:
		h, err := s.households.Create(ctx, c.Fields)
		if err != nil {
			return nil, err
		}
		return &h.ID, nil
	}
	return nil, nil
}

// ReviewResult is the reviewed submission and, after an approval, the
// resident it produced.
type ReviewResult struct {
	Submission *model.Submission
	Resident   *model.Resident
}

// Review approves or rejects a pending submission. Only administrators may
// review, and only submissions still pending can be reviewed; anything else
// yields sentinel.ErrConflict and changes nothing.
func (s *Service) Review(ctx context.Context, caller Caller, id int64, action Action) (*ReviewResult, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can review submissions", sentinel.ErrPermission)
	}
	if action != ActionApprove && action != ActionReject {
		return nil, &ValidationError{Problems: []FieldProblem{{Field: "action", Message: fmt.Sprintf("Invalid action %q.", action)}}}
	}

	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: submission %d", sentinel.ErrNotFound, id)
	}
	if !sub.IsPending() {
		s.metrics.IncReview("conflict")
		return nil, fmt.Errorf("%w: submission %d was already %s", sentinel.ErrConflict, id, sub.Status)
	}

	result := &ReviewResult{}
	if action == ActionReject {
		if err := s.submissions.MarkReviewed(ctx, id, model.StatusRejected, caller.OperatorID); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.IncReview("conflict")
			}
			return nil, err
		}
		s.metrics.IncReview(string(model.StatusRejected))
		s.logger.Info("submission rejected", "submission_id", id, "reviewer_id", caller.OperatorID)
	} else {
		resident, err := s.approve(ctx, caller, sub)
		if err != nil {
			return nil, err
		}
		result.Resident = resident
	}

	result.Submission, err = s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// approve materializes the household and resident of a submission and marks
// it approved, all in one transaction. A storage failure leaves the
// submission pending and is reported as sentinel.ErrIntegrity.
func (s *Service) approve(ctx context.Context, caller Caller, sub *model.Submission) (*model.Resident, error) {
	start := time.Now()
	defer s.metrics.ObserveApproval(start)

	var created *model.Resident
	err := database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		householdID, err := s.resolveStaged(ctx, sub)
		if err != nil {
			return err
		}
		created, err = s.residents.Create(ctx, sub.ResidentFields, householdID)
		if err != nil {
			return err
		}
		return s.submissions.MarkReviewed(ctx, sub.ID, model.StatusApproved, caller.OperatorID)
	})
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncReview("conflict")
		return nil, err
	}
	if err != nil {
		s.metrics.IncReview("failed")
		s.logger.Error("approval rolled back", "submission_id", sub.ID, "error", err)
		return nil, fmt.Errorf("%w: approve submission %d: %w", sentinel.ErrIntegrity, sub.ID, err)
	}

	s.metrics.IncReview(string(model.StatusApproved))
	s.logger.Info("submission approved", "submission_id", sub.ID, "resident_id", created.ID, "reviewer_id", caller.OperatorID)
	return created, nil
}

// resolveStaged picks the household for an approved submission. A proposed
// household number is reused when it already exists and created otherwise.
// A stored reference to a household that has since been deleted resolves to
// no household.
func (s *Service) resolveStaged(ctx context.Context, sub *model.Submission) (*int64, error) {
	if sub.NewHousehold != nil {
		h, err := s.households.GetByNumber(ctx, sub.NewHousehold.HouseholdNo)
		if err != nil {
			return nil, err
		}
		if h == nil {
			h, err = s.households.Create(ctx, *sub.NewHousehold)
			if err != nil {
				return nil, err
			}
		}
		return &h.ID, nil
	}

	if sub.HouseholdID == nil {
		return nil, nil
	}
	h, err := s.households.GetByID(ctx, *sub.HouseholdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		s.logger.Warn("staged household no longer exists, approving without household",
			"submission_id", sub.ID, "household_id", *sub.HouseholdID)
		return nil, nil
	}
	return &h.ID, nil
}

// Submissions lists what the caller may see on the pending page: every
// pending submission for administrators, their own submissions otherwise.
func (s *Service) Submissions(ctx context.Context, caller Caller) ([]model.Submission, error) {
	if caller.IsAdmin() {
		return s.submissions.ListPending(ctx)
	}
	return s.submissions.ListBySubmitter(ctx, caller.OperatorID)
}
