package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/metrics"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/workflow"
)

type fixture struct {
	svc     *Service
	metrics *metrics.Metrics
	admin   workflow.Caller
	ctx     context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(db, time.Hour, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.cost = bcrypt.MinCost

	ctx := context.Background()
	created, err := svc.EnsureAdmin(ctx, "admin", "admin123", false)
	require.NoError(t, err)
	require.True(t, created)
	op, err := svc.operators.GetByUsername(ctx, "admin")
	require.NoError(t, err)

	return &fixture{
		svc:     svc,
		metrics: m,
		admin:   workflow.Caller{OperatorID: op.ID, Role: op.Role},
		ctx:     ctx,
	}
}

func TestLogin(t *testing.T) {
	f := setup(t)

	sess, op, err := f.svc.Login(f.ctx, " admin ", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", op.Username)
	assert.True(t, op.IsAdmin())
	assert.NotEmpty(t, sess.Token)

	_, _, err = f.svc.Login(f.ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(f.ctx, "ghost", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, sentinel.ErrPermission)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues("invalid")))
}

func TestLogout(t *testing.T) {
	f := setup(t)
	sess, _, err := f.svc.Login(f.ctx, "admin", "admin123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(f.ctx, sess.ID))
	got, err := f.svc.Sessions().GetByToken(f.ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChangePassword(t *testing.T) {
	f := setup(t)
	current, _, err := f.svc.Login(f.ctx, "admin", "admin123")
	require.NoError(t, err)
	other, _, err := f.svc.Login(f.ctx, "admin", "admin123")
	require.NoError(t, err)

	cases := []struct {
		name                   string
		current, next, confirm string
		field                  string
	}{
		{"wrong current", "nope", "secret99", "secret99", "current_password"},
		{"mismatch", "admin123", "secret99", "secret98", "confirm_password"},
		{"too short", "admin123", "abc", "abc", "new_password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.ChangePassword(f.ctx, f.admin, current.ID, tc.current, tc.next, tc.confirm)
			var verr *workflow.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Problems[0].Field)
		})
	}

	require.NoError(t, f.svc.ChangePassword(f.ctx, f.admin, current.ID, "admin123", "secret99", "secret99"))

	_, _, err = f.svc.Login(f.ctx, "admin", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(f.ctx, "admin", "secret99")
	assert.NoError(t, err)

	kept, _ := f.svc.Sessions().GetByToken(f.ctx, current.Token)
	assert.NotNil(t, kept, "current session survives a password change")
	dropped, _ := f.svc.Sessions().GetByToken(f.ctx, other.Token)
	assert.Nil(t, dropped, "other sessions are signed out")
}

func TestCreateOperator(t *testing.T) {
	f := setup(t)

	op, err := f.svc.CreateOperator(f.ctx, f.admin, "clerk", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, op.Role)

	adm, err := f.svc.CreateOperator(f.ctx, f.admin, "boss", "secret1", "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, adm.Role)

	_, err = f.svc.CreateOperator(f.ctx, f.admin, "clerk", "secret2", "user")
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	_, err = f.svc.CreateOperator(f.ctx, f.admin, "", "secret1", "user")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
	_, err = f.svc.CreateOperator(f.ctx, f.admin, "shorty", "12345", "user")
	assert.ErrorIs(t, err, sentinel.ErrValidation)

	clerk := workflow.Caller{OperatorID: op.ID, Role: op.Role}
	_, err = f.svc.CreateOperator(f.ctx, clerk, "sneaky", "secret1", "admin")
	assert.ErrorIs(t, err, sentinel.ErrPermission)
	_, err = f.svc.List(f.ctx, clerk)
	assert.ErrorIs(t, err, sentinel.ErrPermission)

	all, err := f.svc.List(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteOperator(t *testing.T) {
	f := setup(t)
	clerk, err := f.svc.CreateOperator(f.ctx, f.admin, "clerk", "secret1", "user")
	require.NoError(t, err)
	busy, err := f.svc.CreateOperator(f.ctx, f.admin, "busy", "secret1", "user")
	require.NoError(t, err)

	_, err = f.svc.submissions.Create(f.ctx, model.ResidentFields{
		LastName: "Dela Cruz", FirstName: "Juan", MiddleName: "R", Gender: "Male",
		Age: 3, Purok: "1", VoterStatus: "Non-Voter", SeniorCitizen: "No",
	}, nil, nil, busy.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteOperator(f.ctx, f.admin, f.admin.OperatorID), sentinel.ErrValidation)
	assert.ErrorIs(t, f.svc.DeleteOperator(f.ctx, f.admin, busy.ID), sentinel.ErrConflict)
	assert.ErrorIs(t, f.svc.DeleteOperator(f.ctx, f.admin, 999), sentinel.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteOperator(f.ctx, workflow.Caller{OperatorID: clerk.ID, Role: model.RoleUser}, busy.ID), sentinel.ErrPermission)

	require.NoError(t, f.svc.DeleteOperator(f.ctx, f.admin, clerk.ID))
	gone, err := f.svc.operators.GetByID(f.ctx, clerk.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestEnsureAdmin(t *testing.T) {
	f := setup(t)

	changed, err := f.svc.EnsureAdmin(f.ctx, "admin", "other123", false)
	require.NoError(t, err)
	assert.False(t, changed, "existing admin is left alone without reset")
	_, _, err = f.svc.Login(f.ctx, "admin", "admin123")
	require.NoError(t, err)

	ops := store.NewOperatorStore(f.svc.db)
	require.NoError(t, ops.UpdateRole(f.ctx, f.admin.OperatorID, model.RoleUser))

	changed, err = f.svc.EnsureAdmin(f.ctx, "admin", "other123", true)
	require.NoError(t, err)
	assert.True(t, changed)
	_, op, err := f.svc.Login(f.ctx, "admin", "other123")
	require.NoError(t, err)
	assert.True(t, op.IsAdmin())

	_, err = f.svc.EnsureAdmin(f.ctx, "admin", "123", true)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}
