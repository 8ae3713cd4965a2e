package rbac

import (
	"context"
	"slices"
)

// Principal is the resolved identity and effective permission set for the current request.
type Principal struct {
	AccountID   string       `json:"id"`
	Username    string       `json:"username,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// Has reports whether the principal's effective set contains perm.
func (p *Principal) Has(perm Permission) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Permissions, perm)
}

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	authErrorKey = contextKey{"auth_error"}
)

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal attached by the authentication middleware, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithAuthError returns a context recording that the request's credential was rejected with err.
// The request itself continues anonymously.
func WithAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrorKey, err)
}

// Unauthenticated returns the error for a caller without a principal: the recorded credential error,
// or ErrUnauthenticated when the request carried no credential.
func Unauthenticated(ctx context.Context) error {
	if err, ok := ctx.Value(authErrorKey).(error); ok && err != nil {
		return err
	}
	return ErrUnauthenticated
}
