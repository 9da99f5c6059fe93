package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

func TestHouseholdCreate(t *testing.T) {
	hs := NewHouseholdStore(openTestDB(t))

	h, err := hs.Create(context.Background(), model.HouseholdFields{HouseholdNo: "HH-001", Purok: "Purok 1"})
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if h.HouseholdNo != "HH-001" {
		t.Errorf("household_no = %q, want %q", h.HouseholdNo, "HH-001")
	}
	if h.Purok != "Purok 1" {
		t.Errorf("purok = %q, want %q", h.Purok, "Purok 1")
	}
	if h.Region != "" {
		t.Errorf("region = %q, want empty", h.Region)
	}
}

func TestHouseholdNumberUnique(t *testing.T) {
	hs := NewHouseholdStore(openTestDB(t))
	ctx := context.Background()

	if _, err := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-001"}); err != nil {
		t.Fatalf("create household: %v", err)
	}
	_, err := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-001"})
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	other, err := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-002"})
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	_, err = hs.Update(ctx, other.ID, model.HouseholdFields{HouseholdNo: "HH-001"})
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("update err = %v, want ErrConflict", err)
	}
}

func TestHouseholdGetByNumber(t *testing.T) {
	hs := NewHouseholdStore(openTestDB(t))
	ctx := context.Background()
	created, _ := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-007"})

	h, err := hs.GetByNumber(ctx, "HH-007")
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	if h == nil || h.ID != created.ID {
		t.Fatalf("got %+v, want household %d", h, created.ID)
	}

	missing, err := hs.GetByNumber(ctx, "HH-999")
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown number")
	}
}

func TestHouseholdListWithMemberCounts(t *testing.T) {
	db := openTestDB(t)
	hs := NewHouseholdStore(db)
	rs := NewResidentStore(db)
	ctx := context.Background()

	b, _ := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-002"})
	hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-001"})
	rs.Create(ctx, testResidentFields("Juan", "Dela Cruz"), &b.ID)
	rs.Create(ctx, testResidentFields("Ana", "Dela Cruz"), &b.ID)

	list, err := hs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].HouseholdNo != "HH-001" {
		t.Errorf("first = %q, want %q", list[0].HouseholdNo, "HH-001")
	}
	if list[0].MemberCount != 0 {
		t.Errorf("HH-001 members = %d, want 0", list[0].MemberCount)
	}
	if list[1].MemberCount != 2 {
		t.Errorf("HH-002 members = %d, want 2", list[1].MemberCount)
	}
}

func TestHouseholdDeleteDetachesMembers(t *testing.T) {
	db := openTestDB(t)
	hs := NewHouseholdStore(db)
	rs := NewResidentStore(db)
	ctx := context.Background()

	h, _ := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-001"})
	r, _ := rs.Create(ctx, testResidentFields("Juan", "Dela Cruz"), &h.ID)

	if err := hs.Delete(ctx, h.ID, nil); err != nil {
		t.Fatalf("delete household: %v", err)
	}
	got, _ := rs.GetByID(ctx, r.ID)
	if got == nil {
		t.Fatal("expected resident to survive household deletion")
	}
	if got.HouseholdID != nil {
		t.Errorf("household_id = %d, want nil", *got.HouseholdID)
	}
}

func TestHouseholdDeleteReassignsMembers(t *testing.T) {
	db := openTestDB(t)
	hs := NewHouseholdStore(db)
	rs := NewResidentStore(db)
	ctx := context.Background()

	from, _ := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-001"})
	to, _ := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-002"})
	r, _ := rs.Create(ctx, testResidentFields("Juan", "Dela Cruz"), &from.ID)

	if err := hs.Delete(ctx, from.ID, &to.ID); err != nil {
		t.Fatalf("delete household: %v", err)
	}
	got, _ := rs.GetByID(ctx, r.ID)
	if got.HouseholdID == nil || *got.HouseholdID != to.ID {
		t.Errorf("household_id = %v, want %d", got.HouseholdID, to.ID)
	}
	if got.HouseholdNo != "HH-002" {
		t.Errorf("household_no = %q, want %q", got.HouseholdNo, "HH-002")
	}
}

func TestHouseholdDeleteReassignToMissingRollsBack(t *testing.T) {
	db := openTestDB(t)
	hs := NewHouseholdStore(db)
	ctx := context.Background()

	h, _ := hs.Create(ctx, model.HouseholdFields{HouseholdNo: "HH-001"})
	missing := int64(999)

	err := hs.Delete(ctx, h.ID, &missing)
	if !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got, _ := hs.GetByID(ctx, h.ID); got == nil {
		t.Error("expected household to remain after failed delete")
	}
}

func TestHouseholdDeleteNotFound(t *testing.T) {
	hs := NewHouseholdStore(openTestDB(t))

	err := hs.Delete(context.Background(), 42, nil)
	if !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
