package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(s scanner) (*model.Household, error) {
	var h model.Household
	var region, province, city, barangay, purok sql.NullString
	err := s.Scan(&h.ID, &h.HouseholdNo, &region, &province, &city, &barangay, &purok, &h.CreatedAt, &h.MemberCount)
	if err != nil {
		return nil, err
	}
	h.Region = region.String
	h.Province = province.String
	h.CityMunicipality = city.String
	h.Barangay = barangay.String
	h.Purok = purok.String
	return &h, nil
}

const householdCols = `h.id, h.household_no, h.region, h.province, h.city_municipality, h.barangay, h.purok, h.created_at,
	(SELECT COUNT(*) FROM residents r WHERE r.household_id = h.id)`

// Create inserts a household. A taken household number yields
// sentinel.ErrConflict.
func (s *HouseholdStore) Create(ctx context.Context, f model.HouseholdFields) (*model.Household, error) {
	q := database.Conn(ctx, s.db)
	result, err := q.ExecContext(ctx,
		`INSERT INTO households (household_no, region, province, city_municipality, barangay, purok)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.HouseholdNo, nullString(f.Region), nullString(f.Province),
		nullString(f.CityMunicipality), nullString(f.Barangay), nullString(f.Purok),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: household number %q already exists", sentinel.ErrConflict, f.HouseholdNo)
	}
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id int64) (*model.Household, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+householdCols+` FROM households h WHERE h.id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByNumber(ctx context.Context, householdNo string) (*model.Household, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+householdCols+` FROM households h WHERE h.household_no = ?`, householdNo)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by number: %w", err)
	}
	return h, nil
}

// List returns all households ordered by household number.
func (s *HouseholdStore) List(ctx context.Context) ([]model.Household, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, `SELECT `+householdCols+` FROM households h ORDER BY h.household_no ASC`)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

func (s *HouseholdStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM households`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count households: %w", err)
	}
	return n, nil
}

func (s *HouseholdStore) Update(ctx context.Context, id int64, f model.HouseholdFields) (*model.Household, error) {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE households SET household_no = ?, region = ?, province = ?, city_municipality = ?, barangay = ?, purok = ?
		 WHERE id = ?`,
		f.HouseholdNo, nullString(f.Region), nullString(f.Province),
		nullString(f.CityMunicipality), nullString(f.Barangay), nullString(f.Purok), id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: household number %q already exists", sentinel.ErrConflict, f.HouseholdNo)
	}
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a household. Members are moved to reassignTo when it is set,
// otherwise detached. Both happen in one transaction.
func (s *HouseholdStore) Delete(ctx context.Context, id int64, reassignTo *int64) error {
	if reassignTo != nil && *reassignTo == id {
		return fmt.Errorf("%w: cannot reassign members to the household being deleted", sentinel.ErrValidation)
	}
	return database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := database.Conn(ctx, s.db)
		if reassignTo != nil {
			target, err := s.GetByID(ctx, *reassignTo)
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("%w: household %d", sentinel.ErrNotFound, *reassignTo)
			}
			if _, err := q.ExecContext(ctx,
				`UPDATE residents SET household_id = ?, updated_at = ? WHERE household_id = ?`,
				*reassignTo, now(), id,
			); err != nil {
				return fmt.Errorf("reassign members: %w", err)
			}
		}
		result, err := q.ExecContext(ctx, `DELETE FROM households WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete household: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: household %d", sentinel.ErrNotFound, id)
		}
		return nil
	})
}
