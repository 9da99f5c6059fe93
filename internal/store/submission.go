package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

const submissionCols = `p.id, p.last_name, p.first_name, p.middle_name, p.gender, p.age, p.purok, p.voter_status,
	p.senior_citizen, p.date_of_birth, p.place_of_birth, p.civil_status, p.citizenship, p.occupation,
	p.household_id, p.new_household_no, p.new_region, p.new_province, p.new_city_municipality, p.new_barangay,
	p.new_purok, p.submitted_by, COALESCE(s.username, ''), p.submitted_at, p.status, p.reviewed_by,
	COALESCE(rv.username, ''), p.reviewed_at`

const submissionFrom = ` FROM pending_residents p
	LEFT JOIN operators s ON s.id = p.submitted_by
	LEFT JOIN operators rv ON rv.id = p.reviewed_by`

func scanSubmission(sc scanner) (*model.Submission, error) {
	var sub model.Submission
	var d residentFieldDest
	var householdID, reviewedBy sql.NullInt64
	var newNo, newRegion, newProvince, newCity, newBarangay, newPurok sql.NullString
	var status string
	var reviewedAt sql.NullTime

	dest := []any{&sub.ID}
	dest = append(dest, d.targets(&sub.ResidentFields)...)
	dest = append(dest,
		&householdID, &newNo, &newRegion, &newProvince, &newCity, &newBarangay, &newPurok,
		&sub.SubmittedBy, &sub.SubmitterName, &sub.SubmittedAt, &status, &reviewedBy,
		&sub.ReviewerName, &reviewedAt,
	)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	d.apply(&sub.ResidentFields)
	sub.HouseholdID = int64Ptr(householdID)
	if newNo.Valid && newNo.String != "" {
		sub.NewHousehold = &model.HouseholdFields{
			HouseholdNo:      newNo.String,
			Region:           newRegion.String,
			Province:         newProvince.String,
			CityMunicipality: newCity.String,
			Barangay:         newBarangay.String,
			Purok:            newPurok.String,
		}
	}
	sub.Status = model.SubmissionStatus(status)
	sub.ReviewedBy = int64Ptr(reviewedBy)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		sub.ReviewedAt = &t
	}
	return &sub, nil
}

// Create stages a submission in the pending state. Setting both an existing
// household and new-household fields is rejected.
func (s *SubmissionStore) Create(ctx context.Context, f model.ResidentFields, householdID *int64, newHousehold *model.HouseholdFields, submittedBy int64) (*model.Submission, error) {
	if householdID != nil && newHousehold != nil {
		return nil, fmt.Errorf("%w: a submission cannot reference an existing household and propose a new one", sentinel.ErrValidation)
	}
	var nh model.HouseholdFields
	if newHousehold != nil {
		nh = *newHousehold
	}
	args := residentFieldArgs(f)
	args = append(args,
		nullInt64(householdID), nullString(nh.HouseholdNo), nullString(nh.Region), nullString(nh.Province),
		nullString(nh.CityMunicipality), nullString(nh.Barangay), nullString(nh.Purok), submittedBy,
	)
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO pending_residents (`+residentFieldCols+`, household_id, new_household_no, new_region,
		 new_province, new_city_municipality, new_barangay, new_purok, submitted_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+submissionCols+submissionFrom+` WHERE p.id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// ListPending returns every pending submission, newest first.
func (s *SubmissionStore) ListPending(ctx context.Context) ([]model.Submission, error) {
	return s.query(ctx, "list pending submissions",
		`SELECT `+submissionCols+submissionFrom+` WHERE p.status = 'pending' ORDER BY p.submitted_at DESC, p.id DESC`,
	)
}

// ListBySubmitter returns one operator's submissions in any state, newest
// first.
func (s *SubmissionStore) ListBySubmitter(ctx context.Context, operatorID int64) ([]model.Submission, error) {
	return s.query(ctx, "list submissions by submitter",
		`SELECT `+submissionCols+submissionFrom+` WHERE p.submitted_by = ? ORDER BY p.submitted_at DESC, p.id DESC`,
		operatorID,
	)
}

func (s *SubmissionStore) query(ctx context.Context, op, query string, args ...any) ([]model.Submission, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *SubmissionStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_residents WHERE status = 'pending'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending submissions: %w", err)
	}
	return n, nil
}

// MarkReviewed moves a pending submission to status. Only a row still in the
// pending state is touched; anything else yields sentinel.ErrConflict.
func (s *SubmissionStore) MarkReviewed(ctx context.Context, id int64, status model.SubmissionStatus, reviewerID int64) error {
	if status != model.StatusApproved && status != model.StatusRejected {
		return fmt.Errorf("%w: invalid review status %q", sentinel.ErrValidation, status)
	}
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE pending_residents SET status = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(status), reviewerID, now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark submission reviewed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: submission %d is no longer pending", sentinel.ErrConflict, id)
	}
	return nil
}

// CountByOperator reports how many submissions an operator made or reviewed.
func (s *SubmissionStore) CountByOperator(ctx context.Context, operatorID int64) (int, error) {
	var n int
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_residents WHERE submitted_by = ? OR reviewed_by = ?`,
		operatorID, operatorID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions by operator: %w", err)
	}
	return n, nil
}
