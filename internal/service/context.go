package service

import (
	"context"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	roleKey
	sessionUnavailableKey
)

// WithSession attaches the caller's session to ctx.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session attached by WithSession, if any.
func SessionFrom(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok && s != nil
}

// WithSessionUnavailable marks ctx as carrying a session cookie whose session
// could not be loaded. The caller is served anonymously but guarded routes
// answer as loading rather than asking for sign-in.
func WithSessionUnavailable(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionUnavailableKey, true)
}

// SessionUnavailable reports whether ctx was marked by WithSessionUnavailable.
func SessionUnavailable(ctx context.Context) bool {
	v, _ := ctx.Value(sessionUnavailableKey).(bool)
	return v
}

// IdentityFrom returns the identity of the caller's session.
func IdentityFrom(ctx context.Context) (*domain.Identity, bool) {
	s, ok := SessionFrom(ctx)
	if !ok {
		return nil, false
	}
	return &s.Identity, true
}

// WithRole attaches a completed role resolution to ctx.
func WithRole(ctx context.Context, r RoleResolution) context.Context {
	return context.WithValue(ctx, roleKey, r)
}

// RoleFrom returns the role resolution attached by WithRole.
func RoleFrom(ctx context.Context) (RoleResolution, bool) {
	r, ok := ctx.Value(roleKey).(RoleResolution)
	return r, ok
}
