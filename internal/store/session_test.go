package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/barangay/internal/model"
)

func TestSessionCreate(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	o := createTestOperator(t, db, "clerk", model.RoleUser)

	sess, err := ss.Create(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.OperatorID != o.ID {
		t.Errorf("operator_id = %d, want %d", sess.OperatorID, o.ID)
	}
	if remaining := time.Until(sess.ExpiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expires in %v, want about 1h", remaining)
	}
}

func TestSessionDefaultTTL(t *testing.T) {
	ss := NewSessionStore(openTestDB(t), 0)
	if ss.TTL() != time.Hour {
		t.Errorf("ttl = %v, want 1h", ss.TTL())
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	o := createTestOperator(t, db, "clerk", model.RoleUser)
	created, _ := ss.Create(ctx, o.ID)

	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}

	missing, err := ss.GetByToken(ctx, "nope")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionExpired(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	o := createTestOperator(t, db, "clerk", model.RoleUser)
	created, _ := ss.Create(ctx, o.ID)

	if _, err := db.Exec(`UPDATE sessions SET expires_at = ? WHERE id = ?`, time.Now().UTC().Add(-time.Minute), created.ID); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteByOperatorIDKeepsCurrent(t *testing.T) {
	db := openTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	o := createTestOperator(t, db, "clerk", model.RoleUser)
	keep, _ := ss.Create(ctx, o.ID)
	other, _ := ss.Create(ctx, o.ID)

	if err := ss.DeleteByOperatorID(ctx, o.ID, keep.ID); err != nil {
		t.Fatalf("delete by operator: %v", err)
	}
	if got, _ := ss.GetByToken(ctx, keep.Token); got == nil {
		t.Error("expected current session to survive")
	}
	if got, _ := ss.GetByToken(ctx, other.Token); got != nil {
		t.Error("expected other session to be removed")
	}
}
