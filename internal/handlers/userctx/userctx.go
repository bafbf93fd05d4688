package userctx

import (
	"context"

	"github.com/nkiryanov/userauth/internal/models"
)

type ctxKey string

const profileKey ctxKey = "profile"

// Create a new context with the authenticated user profile
func New(ctx context.Context, p models.Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// Extract the user profile from the context
func FromContext(ctx context.Context) (models.Profile, bool) {
	p, ok := ctx.Value(profileKey).(models.Profile)
	return p, ok
}
