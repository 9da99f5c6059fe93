package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

func TestSubmissionCreateWithNewHousehold(t *testing.T) {
	db := openTestDB(t)
	ss := NewSubmissionStore(db)
	clerk := createTestOperator(t, db, "clerk", model.RoleUser)

	nh := &model.HouseholdFields{HouseholdNo: "HH-001", Purok: "Purok 1"}
	sub, err := ss.Create(context.Background(), testResidentFields("Juan", "Dela Cruz"), nil, nh, clerk.ID)
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if !sub.IsPending() {
		t.Errorf("status = %q, want pending", sub.Status)
	}
	if sub.NewHousehold == nil || sub.NewHousehold.HouseholdNo != "HH-001" {
		t.Fatalf("new household = %+v, want HH-001", sub.NewHousehold)
	}
	if sub.HouseholdID != nil {
		t.Errorf("household_id = %d, want nil", *sub.HouseholdID)
	}
	if sub.SubmitterName != "clerk" {
		t.Errorf("submitter = %q, want %q", sub.SubmitterName, "clerk")
	}
	if sub.ReviewedBy != nil || sub.ReviewedAt != nil {
		t.Error("expected no review data on a new submission")
	}
}

func TestSubmissionRejectsBothHouseholdForms(t *testing.T) {
	db := openTestDB(t)
	ss := NewSubmissionStore(db)
	clerk := createTestOperator(t, db, "clerk", model.RoleUser)
	id := int64(1)

	_, err := ss.Create(context.Background(), testResidentFields("Juan", "Dela Cruz"), &id,
		&model.HouseholdFields{HouseholdNo: "HH-001"}, clerk.ID)
	if !errors.Is(err, sentinel.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSubmissionListings(t *testing.T) {
	db := openTestDB(t)
	ss := NewSubmissionStore(db)
	ctx := context.Background()
	admin := createTestOperator(t, db, "admin", model.RoleAdmin)
	a := createTestOperator(t, db, "clerk-a", model.RoleUser)
	b := createTestOperator(t, db, "clerk-b", model.RoleUser)

	first, _ := ss.Create(ctx, testResidentFields("Juan", "Dela Cruz"), nil, nil, a.ID)
	second, _ := ss.Create(ctx, testResidentFields("Maria", "Santos"), nil, nil, a.ID)
	third, _ := ss.Create(ctx, testResidentFields("Jose", "Rizal"), nil, nil, b.ID)

	if err := ss.MarkReviewed(ctx, first.ID, model.StatusRejected, admin.ID); err != nil {
		t.Fatalf("mark reviewed: %v", err)
	}

	pending, err := ss.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending len = %d, want 2", len(pending))
	}
	if pending[0].ID != third.ID || pending[1].ID != second.ID {
		t.Errorf("pending order = %d, %d; want %d, %d", pending[0].ID, pending[1].ID, third.ID, second.ID)
	}

	mine, err := ss.ListBySubmitter(ctx, a.ID)
	if err != nil {
		t.Fatalf("list by submitter: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("own len = %d, want 2", len(mine))
	}
	if mine[1].Status != model.StatusRejected || mine[1].ReviewerName != "admin" {
		t.Errorf("oldest = %q by %q, want rejected by admin", mine[1].Status, mine[1].ReviewerName)
	}

	n, err := ss.CountPending(ctx)
	if err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if n != 2 {
		t.Errorf("count pending = %d, want 2", n)
	}
}

func TestSubmissionMarkReviewedOnlyOnce(t *testing.T) {
	db := openTestDB(t)
	ss := NewSubmissionStore(db)
	ctx := context.Background()
	admin := createTestOperator(t, db, "admin", model.RoleAdmin)
	clerk := createTestOperator(t, db, "clerk", model.RoleUser)
	sub, _ := ss.Create(ctx, testResidentFields("Juan", "Dela Cruz"), nil, nil, clerk.ID)

	if err := ss.MarkReviewed(ctx, sub.ID, model.StatusApproved, admin.ID); err != nil {
		t.Fatalf("mark reviewed: %v", err)
	}
	err := ss.MarkReviewed(ctx, sub.ID, model.StatusRejected, admin.ID)
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, _ := ss.GetByID(ctx, sub.ID)
	if got.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != admin.ID {
		t.Errorf("reviewed_by = %v, want %d", got.ReviewedBy, admin.ID)
	}
	if got.ReviewedAt == nil {
		t.Error("expected reviewed_at to be set")
	}
}

func TestSubmissionMarkReviewedInvalidStatus(t *testing.T) {
	ss := NewSubmissionStore(openTestDB(t))

	err := ss.MarkReviewed(context.Background(), 1, model.StatusPending, 1)
	if !errors.Is(err, sentinel.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSubmissionReviewedAtIsStamped(t *testing.T) {
	db := openTestDB(t)
	ss := NewSubmissionStore(db)
	ctx := context.Background()
	admin := createTestOperator(t, db, "admin", model.RoleAdmin)
	clerk := createTestOperator(t, db, "clerk", model.RoleUser)
	sub, _ := ss.Create(ctx, testResidentFields("Juan", "Dela Cruz"), nil, nil, clerk.ID)

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	setClock(t, at)
	if err := ss.MarkReviewed(ctx, sub.ID, model.StatusRejected, admin.ID); err != nil {
		t.Fatalf("mark reviewed: %v", err)
	}

	got, _ := ss.GetByID(ctx, sub.ID)
	if got.ReviewedAt == nil || !got.ReviewedAt.Equal(at) {
		t.Errorf("reviewed_at = %v, want %v", got.ReviewedAt, at)
	}
}
