// Package handler serves the audit trail over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storehub/backend/internal/audit/domain"
	identityhandler "storehub/backend/internal/identity/handler"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Lister reads audit events. *repository.SQLRepository implements it.
type Lister interface {
	ListRecent(ctx context.Context, limit, offset int) ([]*domain.Event, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Event, error)
}

// Handler serves GET /api/admin/audit.
type Handler struct {
	events Lister
	logger *zap.Logger
}

// NewHandler returns an audit handler. logger may be nil.
func NewHandler(events Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{events: events, logger: logger.Named("audit_handler")}
}

// List returns events newest first. Query: account_id, limit (1..200, default 50), offset.
func (h *Handler) List(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultLimit)
	if !ok || limit < 1 {
		identityhandler.WriteError(c, identityhandler.ErrBadRequest)
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok || offset < 0 {
		identityhandler.WriteError(c, identityhandler.ErrBadRequest)
		return
	}

	ctx := c.Request.Context()
	var (
		events []*domain.Event
		err    error
	)
	if accountID := strings.TrimSpace(c.Query("account_id")); accountID != "" {
		events, err = h.events.ListByAccount(ctx, accountID, limit, offset)
	} else {
		events, err = h.events.ListRecent(ctx, limit, offset)
	}
	if err != nil {
		h.logger.Error("list audit events", zap.Error(err))
		identityhandler.WriteError(c, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "limit": limit, "offset": offset})
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
