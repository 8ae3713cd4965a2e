// Package handler exposes admin inspection and revocation of account sessions over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	identityhandler "storehub/backend/internal/identity/handler"
	"storehub/backend/internal/session/domain"
)

// Admin is the subset of the auth service used by the session admin routes.
type Admin interface {
	SessionForAccount(ctx context.Context, accountID string) (*domain.Session, error)
	RevokeAccountSessions(ctx context.Context, accountID string) (int64, error)
}

// Handler serves /api/admin/accounts/:id/session. Permission checks happen in the router.
type Handler struct {
	admin  Admin
	logger *zap.Logger
}

// NewHandler returns a session admin handler. logger may be nil.
func NewHandler(admin Admin, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{admin: admin, logger: logger.Named("session_handler")}
}

// sessionView omits the token hash.
type sessionView struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Get handles GET /api/admin/accounts/:id/session.
func (h *Handler) Get(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		identityhandler.WriteError(c, identityhandler.ErrBadRequest)
		return
	}
	s, err := h.admin.SessionForAccount(c.Request.Context(), accountID)
	if err != nil {
		h.logIfInternal(err)
		identityhandler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionView{
		ID:        s.ID,
		AccountID: s.AccountID,
		ExpiresAt: s.ExpiresAt.UTC(),
		CreatedAt: s.CreatedAt.UTC(),
	}})
}

// Revoke handles DELETE /api/admin/accounts/:id/session. Revoking an account without a session is not an error.
func (h *Handler) Revoke(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		identityhandler.WriteError(c, identityhandler.ErrBadRequest)
		return
	}
	n, err := h.admin.RevokeAccountSessions(c.Request.Context(), accountID)
	if err != nil {
		h.logIfInternal(err)
		identityhandler.WriteError(c, err)
		return
	}
	h.logger.Info("sessions revoked", zap.String("account_id", accountID), zap.Int64("count", n))
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

func (h *Handler) logIfInternal(err error) {
	if status, _ := identityhandler.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("session admin failed", zap.Error(err))
	}
}
