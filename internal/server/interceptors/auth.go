package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"storehub/backend/internal/platform/rbac"
)

const bearerPrefix = "bearer "

// PrincipalResolver resolves an access token to a principal. The auth service implements it.
type PrincipalResolver interface {
	CurrentPrincipal(ctx context.Context, accessToken string) (*rbac.Principal, error)
}

// AuthUnary returns a unary server interceptor applying the same gate as the HTTP server: a valid
// Bearer token attaches its principal; without a token, or with one that fails verification, the call
// proceeds anonymously and the failure is recorded with rbac.WithAuthError. Methods that need a
// principal reject the call themselves.
func AuthUnary(resolver PrincipalResolver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		if token == "" {
			return handler(ctx, req)
		}
		p, err := resolver.CurrentPrincipal(ctx, token)
		if err != nil {
			return handler(rbac.WithAuthError(ctx, err), req)
		}
		return handler(rbac.WithPrincipal(ctx, p), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
