package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
)

// GetRole returns the raw role string the backend assigns to email.
func (b *Backend) GetRole(ctx context.Context, email string) (string, error) {
	var out struct {
		Role string `json:"role"`
	}
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/users/role/" + url.PathEscape(email),
		out:      &out,
		resource: "role",
		id:       email,
	})
	if err != nil {
		return "", err
	}
	return out.Role, nil
}

// GetUser fetches the profile stored for email.
func (b *Backend) GetUser(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/users/" + url.PathEscape(email),
		out:      &u,
		resource: "user",
		id:       email,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser registers u on first sign-in and refreshes its last-login stamp
// afterwards. The backend keeps the existing role when the user exists.
func (b *Backend) UpsertUser(ctx context.Context, u *domain.User) error {
	return b.do(ctx, call{
		method:   http.MethodPost,
		path:     "/users",
		body:     u,
		resource: "user",
		id:       u.Email,
	})
}

// UpdateUser patches profile fields of email.
func (b *Backend) UpdateUser(ctx context.Context, email string, upd *domain.ProfileUpdate) (*domain.User, error) {
	var u domain.User
	err := b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/users/" + url.PathEscape(email),
		body:     upd,
		out:      &u,
		resource: "user",
		id:       email,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every registered user (admin only).
func (b *Backend) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := b.do(ctx, call{
		method:   http.MethodGet,
		path:     "/admin/users",
		out:      &users,
		resource: "users",
	})
	return users, err
}

// SetUserRole promotes or demotes email.
func (b *Backend) SetUserRole(ctx context.Context, email string, role domain.Role) error {
	return b.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/admin/users/" + url.PathEscape(email) + "/role",
		body:     domain.RoleChange{Role: role},
		resource: "user",
		id:       email,
	})
}
