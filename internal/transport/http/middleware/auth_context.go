package middleware

import (
	"context"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	appCtx "github.com/baechuer/orgdocs/services/auth-service/internal/pkg/context"
)

type ctxKey string

const (
	ctxUserID ctxKey = "user_id"
	ctxRole   ctxKey = "role"
	ctxStatus ctxKey = "status"
)

// WithClaims stores the verified session identity for handlers and also tags
// the request logger with the user id.
func WithClaims(ctx context.Context, c auth.SessionClaims) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, c.UserID)
	ctx = context.WithValue(ctx, ctxRole, string(c.Role))
	ctx = context.WithValue(ctx, ctxStatus, string(c.Status))
	return appCtx.WithUserID(ctx, c.UserID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxUserID).(string)
	return v, ok && v != ""
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRole).(string)
	return v, ok && v != ""
}

func StatusFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxStatus).(string)
	return v, ok && v != ""
}
