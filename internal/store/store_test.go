package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// setClock pins the time used for updated_at and reviewed_at stamps.
func setClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func createTestOperator(t *testing.T, db *sql.DB, username string, role model.Role) *model.Operator {
	t.Helper()
	o, err := NewOperatorStore(db).Create(context.Background(), username, "hash", role)
	if err != nil {
		t.Fatalf("create operator %q: %v", username, err)
	}
	return o
}

func testResidentFields(first, last string) model.ResidentFields {
	return model.ResidentFields{
		LastName:      last,
		FirstName:     first,
		MiddleName:    "Reyes",
		Gender:        "Male",
		Age:           30,
		Purok:         "Purok 1",
		VoterStatus:   "Voter",
		SeniorCitizen: "No",
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Juan", "Juan"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
