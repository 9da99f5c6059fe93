package auth

import (
	"context"

	"github.com/dukerupert/barangay/internal/model"
	"github.com/dukerupert/barangay/internal/workflow"
)

type contextKey struct{}

// AuthContext is the signed-in operator attached to a request.
type AuthContext struct {
	OperatorID int64
	Username   string
	Role       model.Role
	SessionID  int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func OperatorID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.OperatorID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}

// Caller converts the request's operator into the explicit identity the
// workflow services take.
func (ac AuthContext) Caller() workflow.Caller {
	return workflow.Caller{OperatorID: ac.OperatorID, Role: ac.Role}
}

// CallerFrom returns the workflow caller for ctx. A request without an
// operator yields the zero Caller, which holds no privileges.
func CallerFrom(ctx context.Context) workflow.Caller {
	ac, _ := FromContext(ctx)
	return ac.Caller()
}
