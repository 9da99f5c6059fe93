// Package account manages operator accounts: sign-in, password changes and
// the administrator's user management.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/barangay/internal/database"
	"github.com/dukerupert/barangay/internal/metrics"
	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/sentinel"
	"github.com/dukerupert/barangay/internal/store"
	"github.com/dukerupert/barangay/internal/workflow"
)

const MinPasswordLength = 6

// ErrInvalidCredentials is returned by Login for an unknown username or a
// wrong password. The two cases are indistinguishable.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", sentinel.ErrPermission)

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type Service struct {
	db          *sql.DB
	operators   *store.OperatorStore
	sessions    *store.SessionStore
	submissions *store.SubmissionStore
	events      *store.EventStore
	cost        int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewService(db *sql.DB, sessionTTL time.Duration, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		operators:   store.NewOperatorStore(db),
		sessions:    store.NewSessionStore(db, sessionTTL),
		submissions: store.NewSubmissionStore(db),
		events:      store.NewEventStore(db),
		cost:        bcrypt.DefaultCost,
		metrics:     m,
		logger:      logger.With("component", "account"),
	}
}

// Sessions exposes the session store for the auth middleware.
func (s *Service) Sessions() *store.SessionStore {
	return s.sessions
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func validationError(field, msg string) error {
	return &workflow.ValidationError{Problems: []workflow.FieldProblem{{Field: field, Message: msg}}}
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.metrics.IncLogin("invalid")
		return nil, nil, ErrInvalidCredentials
	}

	op, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if op == nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.metrics.IncLogin("invalid")
		s.logger.Info("login failed", "username", username, "reason", "unknown user")
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		s.metrics.IncLogin("invalid")
		s.logger.Info("login failed", "username", username, "reason", "wrong password")
		return nil, nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, op.ID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.IncLogin("success")
	s.logger.Info("login", "operator_id", op.ID, "username", op.Username)
	return sess, op, nil
}

func (s *Service) Logout(ctx context.Context, sessionID int64) error {
	return s.sessions.Delete(ctx, sessionID)
}

// ChangePassword replaces the caller's password after checking the current
// one. Every other session of the caller is signed out.
func (s *Service) ChangePassword(ctx context.Context, caller workflow.Caller, sessionID int64, current, next, confirm string) error {
	op, err := s.operators.GetByID(ctx, caller.OperatorID)
	if err != nil {
		return err
	}
	if op == nil {
		return fmt.Errorf("%w: operator %d", sentinel.ErrNotFound, caller.OperatorID)
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(current)) != nil {
		return validationError("current_password", "Current password is incorrect.")
	}
	if next != confirm {
		return validationError("confirm_password", "New passwords do not match.")
	}
	if len(next) < MinPasswordLength {
		return validationError("new_password", fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength))
	}

	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	err = database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.operators.UpdatePassword(ctx, op.ID, hash); err != nil {
			return err
		}
		return s.sessions.DeleteByOperatorID(ctx, op.ID, sessionID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("password changed", "operator_id", op.ID)
	return nil
}

func (s *Service) List(ctx context.Context, caller workflow.Caller) ([]model.Operator, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can list operators", sentinel.ErrPermission)
	}
	return s.operators.List(ctx)
}

// CreateOperator adds a staff account. The role defaults to a standard user.
func (s *Service) CreateOperator(ctx context.Context, caller workflow.Caller, username, password, role string) (*model.Operator, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can create operators", sentinel.ErrPermission)
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError("username", "Username and password are required.")
	}
	if len(password) < MinPasswordLength {
		return nil, validationError("password", fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength))
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	op, err := s.operators.Create(ctx, username, hash, model.ParseRole(role))
	if err != nil {
		return nil, err
	}
	s.logger.Info("operator created", "operator_id", op.ID, "username", op.Username, "role", op.Role, "by", caller.OperatorID)
	return op, nil
}

// DeleteOperator removes a staff account. Operators cannot delete
// themselves, and accounts with submissions or events on record are kept.
func (s *Service) DeleteOperator(ctx context.Context, caller workflow.Caller, id int64) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: only administrators can delete operators", sentinel.ErrPermission)
	}
	if id == caller.OperatorID {
		return validationError("operator", "You cannot delete your own account.")
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		op, err := s.operators.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if op == nil {
			return fmt.Errorf("%w: operator %d", sentinel.ErrNotFound, id)
		}
		subs, err := s.submissions.CountByOperator(ctx, id)
		if err != nil {
			return err
		}
		evs, err := s.events.CountByOperator(ctx, id)
		if err != nil {
			return err
		}
		if subs > 0 || evs > 0 {
			return fmt.Errorf("%w: %s has %d submissions and %d events on record", sentinel.ErrConflict, op.Username, subs, evs)
		}
		if err := s.operators.Delete(ctx, id); err != nil {
			return err
		}
		s.logger.Info("operator deleted", "operator_id", id, "username", op.Username, "by", caller.OperatorID)
		return nil
	})
}

// EnsureAdmin creates the named administrator if missing. With reset it also
// restores the password and admin role of an existing account. It reports
// whether anything changed.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string, reset bool) (bool, error) {
	if len(password) < MinPasswordLength {
		return false, validationError("password", fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength))
	}
	op, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if op != nil && !reset {
		return false, nil
	}

	hash, err := s.hash(password)
	if err != nil {
		return false, err
	}
	if op == nil {
		created, err := s.operators.Create(ctx, username, hash, model.RoleAdmin)
		if errors.Is(err, sentinel.ErrConflict) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		s.logger.Info("admin account created", "operator_id", created.ID, "username", username)
		return true, nil
	}

	err = database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.operators.UpdatePassword(ctx, op.ID, hash); err != nil {
			return err
		}
		return s.operators.UpdateRole(ctx, op.ID, model.RoleAdmin)
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("admin account reset", "operator_id", op.ID, "username", username)
	return true, nil
}

// CleanupSessions drops expired sessions.
func (s *Service) CleanupSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}
