// ABOUTME: Request-scoped identity propagation via context.
// ABOUTME: Provides WithUser/UserFromContext for handlers behind the middleware.

package auth

import "context"

type userIDKey struct{}

// WithUser returns a new context carrying the authenticated user ID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserFromContext retrieves the authenticated user ID, or "" if absent.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
