package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
)

func TestOperatorCreate(t *testing.T) {
	ops := NewOperatorStore(openTestDB(t))
	ctx := context.Background()

	o, err := ops.Create(ctx, "clerk", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	if o.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if o.Username != "clerk" {
		t.Errorf("username = %q, want %q", o.Username, "clerk")
	}
	if o.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", o.Role, model.RoleUser)
	}
	if o.IsAdmin() {
		t.Error("expected non-admin operator")
	}
}

func TestOperatorCreateDuplicateUsername(t *testing.T) {
	ops := NewOperatorStore(openTestDB(t))
	ctx := context.Background()

	if _, err := ops.Create(ctx, "clerk", "hash", model.RoleUser); err != nil {
		t.Fatalf("create operator: %v", err)
	}
	_, err := ops.Create(ctx, "clerk", "other", model.RoleAdmin)
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestOperatorGetByUsername(t *testing.T) {
	db := openTestDB(t)
	ops := NewOperatorStore(db)
	created := createTestOperator(t, db, "admin", model.RoleAdmin)

	o, err := ops.GetByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if o == nil || o.ID != created.ID {
		t.Fatalf("got %+v, want operator %d", o, created.ID)
	}
	if !o.IsAdmin() {
		t.Error("expected admin operator")
	}

	missing, err := ops.GetByUsername(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown username")
	}
}

func TestOperatorUpdatePassword(t *testing.T) {
	db := openTestDB(t)
	ops := NewOperatorStore(db)
	ctx := context.Background()
	o := createTestOperator(t, db, "clerk", model.RoleUser)

	if err := ops.UpdatePassword(ctx, o.ID, "newhash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, _ := ops.GetByID(ctx, o.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("password_hash = %q, want %q", got.PasswordHash, "newhash")
	}
}

func TestOperatorListAndCount(t *testing.T) {
	db := openTestDB(t)
	ops := NewOperatorStore(db)
	ctx := context.Background()
	createTestOperator(t, db, "zed", model.RoleUser)
	createTestOperator(t, db, "amy", model.RoleAdmin)

	list, err := ops.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Username != "amy" {
		t.Errorf("first = %q, want %q", list[0].Username, "amy")
	}

	n, err := ops.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestOperatorDeleteWithSubmissionsConflicts(t *testing.T) {
	db := openTestDB(t)
	ops := NewOperatorStore(db)
	ctx := context.Background()
	clerk := createTestOperator(t, db, "clerk", model.RoleUser)

	if _, err := NewSubmissionStore(db).Create(ctx, testResidentFields("Juan", "Dela Cruz"), nil, nil, clerk.ID); err != nil {
		t.Fatalf("create submission: %v", err)
	}

	err := ops.Delete(ctx, clerk.ID)
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestOperatorDeleteCascadesSessions(t *testing.T) {
	db := openTestDB(t)
	ops := NewOperatorStore(db)
	ss := NewSessionStore(db, 0)
	ctx := context.Background()
	clerk := createTestOperator(t, db, "clerk", model.RoleUser)

	sess, err := ss.Create(ctx, clerk.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := ops.Delete(ctx, clerk.ID); err != nil {
		t.Fatalf("delete operator: %v", err)
	}
	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected session to be removed with its operator")
	}
}
