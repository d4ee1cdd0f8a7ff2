package app

import (
	"context"

	"neighborhood_directory/internal/domain"
)

type sessionKey struct{}

// WithSession returns ctx carrying the resolved session for this request.
func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the request's session, if one was resolved.
func SessionFrom(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domain.Session)
	return s, ok
}

// Viewer is SessionFrom in the optional form read paths take.
func Viewer(ctx context.Context) *domain.Session {
	if s, ok := SessionFrom(ctx); ok {
		return &s
	}
	return nil
}

// Require returns the session when it holds one of roles (any role when none given).
func Require(ctx context.Context, roles ...domain.Role) (domain.Session, error) {
	s, ok := SessionFrom(ctx)
	if !ok {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if len(roles) == 0 {
		return s, nil
	}
	for _, r := range roles {
		if s.Role == r {
			return s, nil
		}
	}
	return domain.Session{}, domain.ErrForbidden
}
