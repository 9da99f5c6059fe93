package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

// Caller identifies the authenticated operator invoking a workflow operation.
type Caller struct {
	OperatorID int64
	Role       model.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// HouseholdChoice says where a new resident lives. It is one of NoHousehold,
// ExistingHousehold or NewHousehold.
type HouseholdChoice interface {
	householdChoice()
}

type NoHousehold struct{}

type ExistingHousehold struct {
	ID int64
}

// NewHousehold proposes a household to be created alongside the resident.
type NewHousehold struct {
	Fields model.HouseholdFields
}

func (NoHousehold) householdChoice()       {}
func (ExistingHousehold) householdChoice() {}
func (NewHousehold) householdChoice()      {}

// ParseHouseholdChoice converts a form selector ("none", "new" or a household
// id) into a HouseholdChoice. fields are used only for "new".
func ParseHouseholdChoice(selector string, fields model.HouseholdFields) (HouseholdChoice, error) {
	selector = strings.TrimSpace(selector)
	switch selector {
	case "", "none":
		return NoHousehold{}, nil
	case "new":
		return NewHousehold{Fields: trimHousehold(fields)}, nil
	}
	id, err := strconv.ParseInt(selector, 10, 64)
	if err != nil || id <= 0 {
		return nil, &ValidationError{Problems: []FieldProblem{{Field: "household_select", Message: "Invalid household selection."}}}
	}
	return ExistingHousehold{ID: id}, nil
}

// ResidentInput is a resident payload as posted by a form, before
// validation.
type ResidentInput struct {
	LastName      string
	FirstName     string
	MiddleName    string
	Gender        string
	Age           string
	Purok         string
	VoterStatus   string
	SeniorCitizen string
	DateOfBirth   string
	PlaceOfBirth  string
	CivilStatus   string
	Citizenship   string
	Occupation    string
	Household     HouseholdChoice
}

// FieldProblem describes one invalid form field.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError lists every problem found in a payload. It matches
// sentinel.ErrValidation with errors.Is.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return "validation failed: " + strings.Join(msgs, " ")
}

func (e *ValidationError) Unwrap() error {
	return sentinel.ErrValidation
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Message: fmt.Sprintf(format, args...)})
}

var requiredFields = []struct {
	field, label string
	value        func(ResidentInput) string
}{
	{"last_name", "Last name", func(in ResidentInput) string { return in.LastName }},
	{"first_name", "First name", func(in ResidentInput) string { return in.FirstName }},
	{"middle_name", "Middle name", func(in ResidentInput) string { return in.MiddleName }},
	{"gender", "Gender", func(in ResidentInput) string { return in.Gender }},
	{"age", "Age", func(in ResidentInput) string { return in.Age }},
	{"purok", "Purok", func(in ResidentInput) string { return in.Purok }},
	{"voter_status", "Voter status", func(in ResidentInput) string { return in.VoterStatus }},
	{"senior_citizen", "Senior citizen", func(in ResidentInput) string { return in.SeniorCitizen }},
}

// Validate checks a payload and returns the typed resident fields. On
// failure it returns a *ValidationError listing every problem.
func Validate(in ResidentInput) (model.ResidentFields, error) {
	verr := &ValidationError{}
	for _, rf := range requiredFields {
		if strings.TrimSpace(rf.value(in)) == "" {
			verr.add(rf.field, "%s is required.", rf.label)
		}
	}

	f := model.ResidentFields{
		LastName:      strings.TrimSpace(in.LastName),
		FirstName:     strings.TrimSpace(in.FirstName),
		MiddleName:    strings.TrimSpace(in.MiddleName),
		Gender:        strings.TrimSpace(in.Gender),
		Purok:         strings.TrimSpace(in.Purok),
		VoterStatus:   strings.TrimSpace(in.VoterStatus),
		SeniorCitizen: strings.TrimSpace(in.SeniorCitizen),
		PlaceOfBirth:  strings.TrimSpace(in.PlaceOfBirth),
		CivilStatus:   strings.TrimSpace(in.CivilStatus),
		Citizenship:   strings.TrimSpace(in.Citizenship),
		Occupation:    strings.TrimSpace(in.Occupation),
	}

	if age := strings.TrimSpace(in.Age); age != "" {
		n, err := strconv.Atoi(age)
		switch {
		case err != nil:
			verr.add("age", "Age must be a whole number.")
		case n < 0:
			verr.add("age", "Age cannot be negative.")
		default:
			f.Age = n
		}
	}

	if dob := strings.TrimSpace(in.DateOfBirth); dob != "" {
		t, err := time.Parse(model.DateLayout, dob)
		if err != nil {
			verr.add("date_of_birth", "Invalid date format for Date of Birth. Use YYYY-MM-DD.")
		} else {
			f.DateOfBirth = &t
		}
	}

	if nh, ok := in.Household.(NewHousehold); ok && strings.TrimSpace(nh.Fields.HouseholdNo) == "" {
		verr.add("new_household_no", "Household number is required when creating a new household.")
	}

	if len(verr.Problems) > 0 {
		return model.ResidentFields{}, verr
	}
	return f, nil
}

// normalizeChoice defaults a missing choice to NoHousehold and trims the
// fields of a NewHousehold, so household numbers match what is stored.
func normalizeChoice(c HouseholdChoice) HouseholdChoice {
	switch c := c.(type) {
	case nil:
		return NoHousehold{}
	case NewHousehold:
		return NewHousehold{Fields: trimHousehold(c.Fields)}
	}
	return c
}

func trimHousehold(f model.HouseholdFields) model.HouseholdFields {
	return model.HouseholdFields{
		HouseholdNo:      strings.TrimSpace(f.HouseholdNo),
		Region:           strings.TrimSpace(f.Region),
		Province:         strings.TrimSpace(f.Province),
		CityMunicipality: strings.TrimSpace(f.CityMunicipality),
		Barangay:         strings.TrimSpace(f.Barangay),
		Purok:            strings.TrimSpace(f.Purok),
	}
}

// Action is a review decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", &ValidationError{Problems: []FieldProblem{{Field: "action", Message: fmt.Sprintf("Invalid action %q.", s)}}}
}
