package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/permissions"
)

type contextKey string

const (
	ctxUserID      contextKey = "user_id"
	ctxPermissions contextKey = "permissions"
)

// UserIDFromContext returns uuid.Nil for anonymous callers.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// PermissionsFromContext returns the caller's resolved set. A request that
// never went through Permissions gets an empty set.
func PermissionsFromContext(ctx context.Context) permissions.Set {
	if ctx == nil {
		return permissions.Set{}
	}
	if v, ok := ctx.Value(ctxPermissions).(permissions.Set); ok {
		return v
	}
	return permissions.Set{}
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithPermissions injects a resolved permission set.
func WithPermissions(ctx context.Context, set permissions.Set) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPermissions, set)
}
