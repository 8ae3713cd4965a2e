package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	identityhandler "storehub/backend/internal/identity/handler"
	"storehub/backend/internal/metrics"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/security"
)

// RequirePermission admits the request only if the gate attached a principal that authz allows perm.
// It must run after Authenticate. A request whose token the gate did not accept gets 401 "invalid token".
func RequirePermission(authz rbac.Authorizer, perm rbac.Permission, m *metrics.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := rbac.RequirePermission(c.Request.Context(), authz, perm); err != nil {
			m.GateRejected(rejectReason(err))
			identityhandler.WriteError(c, err)
			return
		}
		c.Next()
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, security.ErrInvalidToken):
		return metrics.ResultInvalidToken
	case errors.Is(err, rbac.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, rbac.ErrInsufficientPermission):
		return "insufficient_permission"
	default:
		return metrics.ResultError
	}
}
