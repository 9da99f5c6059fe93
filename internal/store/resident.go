package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type ResidentStore struct {
	db *sql.DB
}

func NewResidentStore(db *sql.DB) *ResidentStore {
	return &ResidentStore{db: db}
}

// residentFieldCols are shared with pending_residents so approval can copy a
// submission verbatim.
const residentFieldCols = `last_name, first_name, middle_name, gender, age, purok, voter_status, senior_citizen,
	date_of_birth, place_of_birth, civil_status, citizenship, occupation`

const residentCols = `r.id, r.last_name, r.first_name, r.middle_name, r.gender, r.age, r.purok, r.voter_status,
	r.senior_citizen, r.date_of_birth, r.place_of_birth, r.civil_status, r.citizenship, r.occupation,
	r.household_id, h.household_no, r.created_at, r.updated_at`

const residentFrom = ` FROM residents r LEFT JOIN households h ON h.id = r.household_id`

// residentFieldArgs returns the values of residentFieldCols in order.
func residentFieldArgs(f model.ResidentFields) []any {
	return []any{
		f.LastName, f.FirstName, f.MiddleName, f.Gender, f.Age, f.Purok, f.VoterStatus, f.SeniorCitizen,
		nullDate(f.DateOfBirth), nullString(f.PlaceOfBirth), nullString(f.CivilStatus),
		nullString(f.Citizenship), nullString(f.Occupation),
	}
}

// residentFieldDest holds scan targets for the nullable resident columns.
type residentFieldDest struct {
	dob, placeOfBirth, civilStatus, citizenship, occupation sql.NullString
}

func (d *residentFieldDest) targets(f *model.ResidentFields) []any {
	return []any{
		&f.LastName, &f.FirstName, &f.MiddleName, &f.Gender, &f.Age, &f.Purok, &f.VoterStatus, &f.SeniorCitizen,
		&d.dob, &d.placeOfBirth, &d.civilStatus, &d.citizenship, &d.occupation,
	}
}

func (d *residentFieldDest) apply(f *model.ResidentFields) {
	f.DateOfBirth = datePtr(d.dob)
	f.PlaceOfBirth = d.placeOfBirth.String
	f.CivilStatus = d.civilStatus.String
	f.Citizenship = d.citizenship.String
	f.Occupation = d.occupation.String
}

func scanResident(s scanner) (*model.Resident, error) {
	var r model.Resident
	var d residentFieldDest
	var householdID sql.NullInt64
	var householdNo sql.NullString

	dest := []any{&r.ID}
	dest = append(dest, d.targets(&r.ResidentFields)...)
	dest = append(dest, &householdID, &householdNo, &r.CreatedAt, &r.UpdatedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	d.apply(&r.ResidentFields)
	r.HouseholdID = int64Ptr(householdID)
	r.HouseholdNo = householdNo.String
	return &r, nil
}

// Create inserts a resident. A household reference that does not exist
// yields sentinel.ErrNotFound.
func (s *ResidentStore) Create(ctx context.Context, f model.ResidentFields, householdID *int64) (*model.Resident, error) {
	args := append(residentFieldArgs(f), nullInt64(householdID))
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO residents (`+residentFieldCols+`, household_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: household %d", sentinel.ErrNotFound, *householdID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert resident: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ResidentStore) GetByID(ctx context.Context, id int64) (*model.Resident, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+residentCols+residentFrom+` WHERE r.id = ?`, id)
	r, err := scanResident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resident: %w", err)
	}
	return r, nil
}

// List returns residents ordered by first name. A non-empty search keeps
// residents whose first name starts with it, case-insensitively.
func (s *ResidentStore) List(ctx context.Context, search string) ([]model.Resident, error) {
	query := `SELECT ` + residentCols + residentFrom
	var args []any
	if search != "" {
		query += ` WHERE r.first_name LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(search)+"%")
	}
	query += ` ORDER BY r.first_name COLLATE NOCASE ASC, r.last_name COLLATE NOCASE ASC, r.id ASC`
	return s.query(ctx, "list residents", query, args...)
}

// ListByHousehold returns the members of a household ordered by last then
// first name.
func (s *ResidentStore) ListByHousehold(ctx context.Context, householdID int64) ([]model.Resident, error) {
	return s.query(ctx, "list household members",
		`SELECT `+residentCols+residentFrom+` WHERE r.household_id = ?
		 ORDER BY r.last_name COLLATE NOCASE ASC, r.first_name COLLATE NOCASE ASC, r.id ASC`,
		householdID,
	)
}

func (s *ResidentStore) query(ctx context.Context, op, query string, args ...any) ([]model.Resident, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var residents []model.Resident
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resident: %w", err)
		}
		residents = append(residents, *r)
	}
	return residents, rows.Err()
}

func (s *ResidentStore) Update(ctx context.Context, id int64, f model.ResidentFields, householdID *int64) (*model.Resident, error) {
	args := append(residentFieldArgs(f), nullInt64(householdID), now(), id)
	result, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE residents SET last_name = ?, first_name = ?, middle_name = ?, gender = ?, age = ?, purok = ?,
		 voter_status = ?, senior_citizen = ?, date_of_birth = ?, place_of_birth = ?, civil_status = ?,
		 citizenship = ?, occupation = ?, household_id = ?, updated_at = ?
		 WHERE id = ?`,
		args...,
	)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: household %d", sentinel.ErrNotFound, *householdID)
	}
	if err != nil {
		return nil, fmt.Errorf("update resident: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Delete removes a resident and reports whether a row was deleted.
func (s *ResidentStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM residents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete resident: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Stats computes the dashboard counters.
func (s *ResidentStore) Stats(ctx context.Context) (*model.ResidentStats, error) {
	q := database.Conn(ctx, s.db)
	var st model.ResidentStats
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN gender = 'Male' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN gender = 'Female' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN voter_status = 'Voter' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN voter_status = 'Non-Voter' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN senior_citizen = 'Yes' THEN 1 ELSE 0 END), 0)
		 FROM residents`,
	).Scan(&st.Total, &st.Males, &st.Females, &st.Voters, &st.NonVoters, &st.SeniorCitizens)
	if err != nil {
		return nil, fmt.Errorf("resident stats: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT purok, COUNT(*) FROM residents GROUP BY purok ORDER BY purok ASC`)
	if err != nil {
		return nil, fmt.Errorf("residents by purok: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pc model.PurokCount
		if err := rows.Scan(&pc.Purok, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan purok count: %w", err)
		}
		st.ByPurok = append(st.ByPurok, pc)
	}
	return &st, rows.Err()
}
