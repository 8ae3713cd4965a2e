package rbac

import (
	"context"
	"errors"
)

var (
	// ErrUnauthenticated is returned when a protected operation runs without a principal.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInsufficientPermission is returned when the principal lacks the required permission.
	ErrInsufficientPermission = errors.New("insufficient permission")
)

// Authorizer decides whether a principal may perform an operation requiring perm.
// Implementations must be side-effect free.
type Authorizer interface {
	Authorize(ctx context.Context, p *Principal, perm Permission) error
}

// StaticAuthorizer admits a principal iff its effective permission set contains the required permission.
type StaticAuthorizer struct{}

// Authorize implements Authorizer.
func (StaticAuthorizer) Authorize(_ context.Context, p *Principal, perm Permission) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.Has(perm) {
		return ErrInsufficientPermission
	}
	return nil
}

// RequirePermission resolves the principal from ctx and checks perm with authz.
// Returns the principal on success, Unauthenticated(ctx) without a principal, or the authorizer's error.
func RequirePermission(ctx context.Context, authz Authorizer, perm Permission) (*Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, Unauthenticated(ctx)
	}
	if err := authz.Authorize(ctx, p, perm); err != nil {
		return nil, err
	}
	return p, nil
}
