package auth

import (
	"context"

	"github.com/rallypoint/rallypoint/internal/model"
)

type contextKey struct{}

// AuthContext is the resolved identity for one request. Handlers only ever
// see this; credentials never cross the middleware boundary.
type AuthContext struct {
	UserID int64
	OrgID  int64
	Role   string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// UserIDPtr returns the caller's user id, or nil for anonymous callers.
// Used where the id lands in a nullable column (e.g. backups.created_by).
func UserIDPtr(ctx context.Context) *int64 {
	ac, ok := FromContext(ctx)
	if !ok || ac.UserID == 0 {
		return nil
	}
	id := ac.UserID
	return &id
}

func Role(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return model.RoleGuest
	}
	return ac.Role
}

func IsAdmin(ctx context.Context) bool {
	return Role(ctx) == model.RoleAdmin
}

// CanOrganize reports whether the caller may create or edit content.
func CanOrganize(ctx context.Context) bool {
	r := Role(ctx)
	return r == model.RoleAdmin || r == model.RoleOrganizer
}
