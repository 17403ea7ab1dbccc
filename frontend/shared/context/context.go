package context

import (
	"context"

	"cuttracker/models"
)

type sessionKey struct{}

func NewContextWithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

func GetSessionFromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(models.Session)
	return s, ok
}

// UserID returns the session user id, or 0 when there is no session.
func UserID(ctx context.Context) int64 {
	if s, ok := GetSessionFromContext(ctx); ok {
		return s.UserID
	}
	return 0
}

// HasRole reports whether the session carries role.
func HasRole(ctx context.Context, role string) bool {
	s, ok := GetSessionFromContext(ctx)
	if !ok {
		return false
	}
	for _, r := range s.UserRoles {
		if r == role {
			return true
		}
	}
	return s.User.Role == role
}
