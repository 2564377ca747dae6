// Package shared provides helpers used across API handlers.
package shared

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

// UserIDContextKey is the context key under which the authentication
// middleware stores the caller's user ID.
const UserIDContextKey contextKey = "userID"

// ErrNoUserID is returned when no authenticated user is attached to the
// request context.
var ErrNoUserID = errors.New("no user ID in context")

// WithUserID returns a context carrying the authenticated user's ID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// GetUserID extracts the authenticated user's ID from the context.
func GetUserID(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, ErrNoUserID
	}
	return userID, nil
}
