package auth

import (
	"context"
	"testing"

	"github.com/dukerupert/barangay/internal/model"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		OperatorID: 1,
		Username:   "admin",
		Role:       model.RoleAdmin,
		SessionID:  3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.OperatorID != 1 {
		t.Errorf("OperatorID = %d, want 1", got.OperatorID)
	}
	if got.Username != "admin" {
		t.Errorf("Username = %q, want %q", got.Username, "admin")
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, model.RoleAdmin)
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestOperatorID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{OperatorID: 7})
	if OperatorID(ctx) != 7 {
		t.Errorf("OperatorID = %d, want 7", OperatorID(ctx))
	}
	if OperatorID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithAuth(context.Background(), AuthContext{Role: model.RoleAdmin})) {
		t.Error("expected IsAdmin = true for admin role")
	}
	if IsAdmin(WithAuth(context.Background(), AuthContext{Role: model.RoleUser})) {
		t.Error("expected IsAdmin = false for user role")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}

func TestCallerFrom(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{OperatorID: 5, Role: model.RoleUser})
	c := CallerFrom(ctx)
	if c.OperatorID != 5 || c.Role != model.RoleUser {
		t.Errorf("caller = %+v, want operator 5 with user role", c)
	}
	if CallerFrom(context.Background()).IsAdmin() {
		t.Error("expected anonymous caller to hold no privileges")
	}
}
