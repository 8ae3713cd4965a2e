package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storehub/backend/internal/identity/service"
	"storehub/backend/internal/platform/rbac"
)

// ErrBadRequest is returned for a malformed request body or path parameter.
var ErrBadRequest = errors.New("invalid request")

// StatusFor maps an error to its HTTP status and public message. Unknown errors map to 500 without detail.
// ErrInvalidToken is checked before ErrUnauthenticated since a rejected token matches both.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, "account inactive"
	case errors.Is(err, rbac.ErrInsufficientPermission):
		return http.StatusForbidden, "insufficient permission"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// WriteError aborts the request with the JSON body {"error": message} for err.
func WriteError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
