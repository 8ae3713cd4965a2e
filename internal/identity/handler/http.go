// Package handler serves the session lifecycle over HTTP (login, refresh, logout, current principal)
// and the caller's principal over gRPC.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storehub/backend/internal/identity/service"
	"storehub/backend/internal/platform/rbac"
)

// CookieConfig controls the names and attributes of the token cookies.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	RefreshPath string
	Domain      string
	Secure      bool
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	auth    service.Authenticator
	cookies CookieConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthHandler returns an AuthHandler. logger may be nil.
func NewAuthHandler(auth service.Authenticator, cookies CookieConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, cookies: cookies, logger: logger.Named("auth_handler"), now: time.Now}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	Principal        *rbac.Principal `json:"principal"`
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	AccessExpiresAt  time.Time       `json:"access_expires_at"`
	RefreshExpiresAt time.Time       `json:"refresh_expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, ErrBadRequest)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logFailure("login", err)
		WriteError(c, err)
		return
	}
	h.setTokenCookies(c, res)
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Refresh handles POST /api/auth/refresh. The refresh token is read from its cookie, or from the JSON body
// when the cookie is absent.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := h.refreshTokenFrom(c)
	res, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.logFailure("refresh", err)
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrAccountInactive) {
			h.clearCookies(c)
		}
		WriteError(c, err)
		return
	}
	h.setTokenCookies(c, res)
	c.JSON(http.StatusOK, newTokenResponse(res))
}

// Logout handles POST /api/auth/logout. It always answers 204 and clears both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), h.refreshTokenFrom(c)); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
	}
	h.clearCookies(c)
	c.Status(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := rbac.PrincipalFromContext(c.Request.Context())
	if !ok {
		WriteError(c, rbac.Unauthenticated(c.Request.Context()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": p})
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(h.cookies.RefreshName); err == nil && v != "" {
		return v
	}
	if c.Request.ContentLength == 0 {
		return ""
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, res *service.AuthResult) {
	now := h.now()
	http.SetCookie(c.Writer, h.cookie(h.cookies.AccessName, res.AccessToken, "/", maxAge(res.AccessExpiresAt, now)))
	http.SetCookie(c.Writer, h.cookie(h.cookies.RefreshName, res.RefreshToken, h.cookies.RefreshPath, maxAge(res.RefreshExpiresAt, now)))
}

func (h *AuthHandler) clearCookies(c *gin.Context) {
	http.SetCookie(c.Writer, h.cookie(h.cookies.AccessName, "", "/", -1))
	http.SetCookie(c.Writer, h.cookie(h.cookies.RefreshName, "", h.cookies.RefreshPath, -1))
}

func (h *AuthHandler) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) logFailure(op string, err error) {
	status, _ := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err))
		return
	}
	h.logger.Debug(op+" rejected", zap.Error(err))
}

// maxAge returns whole seconds until expiresAt, at least 1 so the cookie is not treated as a deletion.
func maxAge(expiresAt, now time.Time) int {
	secs := int(expiresAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

func newTokenResponse(res *service.AuthResult) tokenResponse {
	return tokenResponse{
		Principal:        res.Principal,
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExpiresAt.UTC(),
		RefreshExpiresAt: res.RefreshExpiresAt.UTC(),
	}
}
