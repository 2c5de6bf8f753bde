package api

import (
	"context"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

type contextKey string

const userContextKey contextKey = "current_user"

// UserFromContext extracts the CurrentUser from context. Requests without
// an identity yield the anonymous user.
func UserFromContext(ctx context.Context) models.CurrentUser {
	user, ok := ctx.Value(userContextKey).(models.CurrentUser)
	if !ok {
		return models.CurrentUser{}
	}
	return user
}

// ContextWithUser adds the CurrentUser to context
func ContextWithUser(ctx context.Context, user models.CurrentUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
