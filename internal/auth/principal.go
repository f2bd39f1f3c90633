// Package auth issues and verifies access tokens and carries the caller
// identity through request contexts.
package auth

import (
	"context"
	"errors"

	"parkwise/internal/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// RequireAdmin returns ErrForbidden for non-admin principals.
func (p Principal) RequireAdmin() error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func PrincipalFromUser(u *models.User) Principal {
	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
