package auth

import (
	"context"

	"github.com/atspro/atspro/internal/model"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	Token string
	User  model.User
}

type identityKey struct{}

// ContextWithIdentity attaches id to ctx.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the attached identity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// MustIdentityFromContext is for handlers mounted behind the Auth
// middleware, where a missing identity is a wiring bug.
func MustIdentityFromContext(ctx context.Context) *Identity {
	if id := IdentityFromContext(ctx); id != nil {
		return id
	}
	panic("auth: no identity in context; route is missing the Auth middleware")
}

// UserIDFromContext returns the caller's user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.User.ID
	}
	return ""
}
