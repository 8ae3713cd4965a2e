package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTP serves /healthz and /readyz.
type HTTP struct {
	checker *Checker
	logger  *zap.Logger
}

// NewHTTP returns the HTTP health handlers. logger may be nil.
func NewHTTP(checker *Checker, logger *zap.Logger) *HTTP {
	if checker == nil {
		checker = NewChecker(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{checker: checker, logger: logger}
}

// Liveness answers 200 while the process runs.
func (h *HTTP) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness answers 200 when dependencies are reachable and 503 otherwise.
func (h *HTTP) Readiness(c *gin.Context) {
	if err := h.checker.Ready(c.Request.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
