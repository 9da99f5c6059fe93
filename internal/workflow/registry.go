package workflow

import (
	"context"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

func requireAdmin(caller Caller, what string) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: only administrators can %s", sentinel.ErrPermission, what)
	}
	return nil
}

// UpdateResident rewrites a resident. A NewHousehold choice creates the
// household in the same transaction as the update.
func (s *Service) UpdateResident(ctx context.Context, caller Caller, id int64, in ResidentInput) (*model.Resident, error) {
	if err := requireAdmin(caller, "edit residents"); err != nil {
		return nil, err
	}
	in.Household = normalizeChoice(in.Household)
	fields, err := Validate(in)
	if err != nil {
		return nil, err
	}

	var updated *model.Resident
	err = database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.residents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: resident %d", sentinel.ErrNotFound, id)
		}
		householdID, err := s.resolveChoice(ctx, in.Household)
		if err != nil {
			return err
		}
		updated, err = s.residents.Update(ctx, id, fields, householdID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("resident updated", "resident_id", id, "operator_id", caller.OperatorID)
	return updated, nil
}

func (s *Service) DeleteResident(ctx context.Context, caller Caller, id int64) error {
	if err := requireAdmin(caller, "delete residents"); err != nil {
		return err
	}
	deleted, err := s.residents.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: resident %d", sentinel.ErrNotFound, id)
	}
	s.logger.Info("resident deleted", "resident_id", id, "operator_id", caller.OperatorID)
	return nil
}

// UpdateHousehold edits a household's address fields. The household number
// stays unique.
func (s *Service) UpdateHousehold(ctx context.Context, caller Caller, id int64, fields model.HouseholdFields) (*model.Household, error) {
	if err := requireAdmin(caller, "edit households"); err != nil {
		return nil, err
	}
	fields = trimHousehold(fields)
	if fields.HouseholdNo == "" {
		return nil, &ValidationError{Problems: []FieldProblem{{Field: "household_no", Message: "Household number is required."}}}
	}

	existing, err := s.households.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: household %d", sentinel.ErrNotFound, id)
	}
	updated, err := s.households.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.logger.Info("household updated", "household_id", id, "operator_id", caller.OperatorID)
	return updated, nil
}

// DeleteHousehold removes a household, moving its members to reassignTo or
// detaching them when reassignTo is nil.
func (s *Service) DeleteHousehold(ctx context.Context, caller Caller, id int64, reassignTo *int64) error {
	if err := requireAdmin(caller, "delete households"); err != nil {
		return err
	}
	if err := s.households.Delete(ctx, id, reassignTo); err != nil {
		return err
	}
	attrs := []any{"household_id", id, "operator_id", caller.OperatorID}
	if reassignTo != nil {
		attrs = append(attrs, "reassigned_to", *reassignTo)
	}
	s.logger.Info("household deleted", attrs...)
	return nil
}
