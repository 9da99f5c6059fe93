package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
)

const (
	keyOfficeBarangay         = "office_barangay"
	keyOfficeCityMunicipality = "office_city_municipality"
	keyOfficeProvince         = "office_province"
	keyOfficeRegion           = "office_region"
)

var officeKeys = []string{
	keyOfficeBarangay,
	keyOfficeCityMunicipality,
	keyOfficeProvince,
	keyOfficeRegion,
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key, or "" when the key has never been set.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := database.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// OfficeProfile returns the address of the barangay office, used to prefill
// new household forms.
func (s *SettingsStore) OfficeProfile(ctx context.Context) (model.OfficeProfile, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return model.OfficeProfile{}, err
	}
	return model.OfficeProfile{
		Barangay:         all[keyOfficeBarangay],
		CityMunicipality: all[keyOfficeCityMunicipality],
		Province:         all[keyOfficeProvince],
		Region:           all[keyOfficeRegion],
	}, nil
}

func (s *SettingsStore) SetOfficeProfile(ctx context.Context, p model.OfficeProfile) error {
	values := map[string]string{
		keyOfficeBarangay:         p.Barangay,
		keyOfficeCityMunicipality: p.CityMunicipality,
		keyOfficeProvince:         p.Province,
		keyOfficeRegion:           p.Region,
	}
	return database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		for _, key := range officeKeys {
			if err := s.Set(ctx, key, values[key]); err != nil {
				return err
			}
		}
		return nil
	})
}
