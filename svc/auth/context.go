package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type userContextKey struct{}

// WithUserID stores the authenticated user's ID in ctx.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey{}, id)
}

// UserIDFromContext returns the authenticated user's ID, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userContextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// MustUserID panics if no user is in ctx. Use only behind Middleware.
func MustUserID(ctx context.Context) uuid.UUID {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		panic("auth: no user in context")
	}
	return id
}

// LoggerExtractor enriches log records with the authenticated user's ID.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := UserIDFromContext(ctx); ok {
			return slog.String("user_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}
