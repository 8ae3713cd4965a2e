// Package middleware holds the gin middleware of the HTTP server: the authentication gate, permission
// checks, request logging, client IP propagation, and login rate limiting.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storehub/backend/internal/audit"
	"storehub/backend/internal/platform/rbac"
)

const bearerPrefix = "bearer "

// PrincipalResolver resolves an access token to a principal. The auth service implements it.
type PrincipalResolver interface {
	CurrentPrincipal(ctx context.Context, accessToken string) (*rbac.Principal, error)
}

// Authenticate is the authentication gate. It reads the access token from the cookie named cookieName,
// falling back to an Authorization Bearer header. A valid token attaches its principal to the request
// context. Without a token, or with one that fails verification, the request proceeds anonymously; a
// failed token is recorded with rbac.WithAuthError so protected routes answer "invalid token".
// Public routes such as login, refresh and logout therefore keep working with a stale cookie.
func Authenticate(resolver PrincipalResolver, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := accessToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		p, err := resolver.CurrentPrincipal(ctx, token)
		if err != nil {
			logger.Debug("gate: token not accepted, continuing anonymously", zap.String("path", c.FullPath()), zap.Error(err))
			c.Request = c.Request.WithContext(rbac.WithAuthError(ctx, err))
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(rbac.WithPrincipal(ctx, p))
		c.Next()
	}
}

// accessToken returns the access cookie value, or the Bearer token, or "".
func accessToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return extractBearer(c.GetHeader("Authorization"))
}

// extractBearer returns the token of a "Bearer <token>" header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ClientIP stores gin's view of the client address in the request context for audit records.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
