package store

import (
	"context"
	"testing"

	"github.com/dukerupert/barangay/internal/model"
)

func TestSettingsSeedData(t *testing.T) {
	ss := NewSettingsStore(openTestDB(t))

	settings, err := ss.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	for _, key := range officeKeys {
		got, ok := settings[key]
		if !ok {
			t.Errorf("missing setting %q", key)
			continue
		}
		if got != "" {
			t.Errorf("setting %q = %q, want empty", key, got)
		}
	}
}

func TestSettingsSetAndGet(t *testing.T) {
	ss := NewSettingsStore(openTestDB(t))
	ctx := context.Background()

	if err := ss.Set(ctx, "custom_key", "value"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ss.Set(ctx, "custom_key", "updated"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	got, err := ss.Get(ctx, "custom_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "updated" {
		t.Errorf("custom_key = %q, want %q", got, "updated")
	}

	missing, err := ss.Get(ctx, "never_set")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != "" {
		t.Errorf("never_set = %q, want empty", missing)
	}
}

func TestSettingsOfficeProfile(t *testing.T) {
	ss := NewSettingsStore(openTestDB(t))
	ctx := context.Background()

	want := model.OfficeProfile{
		Barangay:         "San Isidro",
		CityMunicipality: "Tanauan",
		Province:         "Batangas",
		Region:           "IV-A",
	}
	if err := ss.SetOfficeProfile(ctx, want); err != nil {
		t.Fatalf("set office profile: %v", err)
	}
	got, err := ss.OfficeProfile(ctx)
	if err != nil {
		t.Fatalf("office profile: %v", err)
	}
	if got != want {
		t.Errorf("office profile = %+v, want %+v", got, want)
	}
}
