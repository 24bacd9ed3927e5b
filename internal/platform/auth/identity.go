package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned when the request carries no verified email.
var ErrNoIdentity = errors.New("no verified identity on request")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithIdentity stores id on ctx under the individual user keys.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, id.Email)
	ctx = context.WithValue(ctx, UserRolesKey, id.Roles)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func IdentityFromContext(ctx context.Context) Identity {
	return Identity{
		UserID: UserIDFromContext(ctx),
		Email:  EmailFromContext(ctx),
		Roles:  RolesFromContext(ctx),
	}
}

// ContextResolver resolves the caller's verified email from the request
// context populated by the auth middleware.
type ContextResolver struct{}

func (ContextResolver) ResolveEmail(ctx context.Context) (string, error) {
	if email := EmailFromContext(ctx); email != "" {
		return email, nil
	}
	return "", ErrNoIdentity
}
