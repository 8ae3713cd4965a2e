package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storehub/backend/internal/audit"
	"storehub/backend/internal/metrics"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/security"
)

type fakeResolver struct {
	principals map[string]*rbac.Principal
}

func (f fakeResolver) CurrentPrincipal(_ context.Context, token string) (*rbac.Principal, error) {
	if token == "" {
		return nil, rbac.ErrUnauthenticated
	}
	p, ok := f.principals[token]
	if !ok {
		return nil, fmt.Errorf("%w: %w", rbac.ErrUnauthenticated, security.ErrInvalidToken)
	}
	return p, nil
}

var (
	alice = &rbac.Principal{AccountID: "acct-alice", Role: rbac.RoleUser, Permissions: []rbac.Permission{rbac.PermProductsRead}}
	admin = &rbac.Principal{AccountID: "acct-admin", Role: rbac.RoleAdmin, Permissions: []rbac.Permission{rbac.PermSessionsRead}}
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	resolver := fakeResolver{principals: map[string]*rbac.Principal{"alice-token": alice, "admin-token": admin}}
	r.Use(ClientIP(), Authenticate(resolver, "access_token", nil))
	final := func(c *gin.Context) {
		if p, ok := rbac.PrincipalFromContext(c.Request.Context()); ok {
			c.String(http.StatusOK, p.AccountID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r.GET("/open", final)
	r.GET("/admin", append(handlers, final)...)
	return r
}

func get(r http.Handler, path string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withCookie(v string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: v}) }
}

func withBearer(v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+v) }
}

func TestAuthenticate_Anonymous(t *testing.T) {
	w := get(newEngine(), "/open", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestAuthenticate_CookieAndBearer(t *testing.T) {
	r := newEngine()

	w := get(r, "/open", withCookie("alice-token"))
	assert.Equal(t, "acct-alice", w.Body.String())

	w = get(r, "/open", withBearer("alice-token"))
	assert.Equal(t, "acct-alice", w.Body.String())

	// The cookie wins over the header.
	w = get(r, "/open", func(req *http.Request) {
		withCookie("admin-token")(req)
		withBearer("alice-token")(req)
	})
	assert.Equal(t, "acct-admin", w.Body.String())
}

func TestAuthenticate_InvalidTokenContinuesAnonymously(t *testing.T) {
	r := newEngine()

	for _, setup := range []func(*http.Request){withCookie("forged"), withBearer("forged")} {
		w := get(r, "/open", setup)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	}
}

func TestRequirePermission(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAuth(reg)
	r := newEngine(RequirePermission(rbac.StaticAuthorizer{}, rbac.PermSessionsRead, m))

	w := get(r, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())

	w = get(r, "/admin", withCookie("forged"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, w.Body.String())

	w = get(r, "/admin", withCookie("alice-token"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"insufficient permission"}`, w.Body.String())

	w = get(r, "/admin", withCookie("admin-token"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-admin", w.Body.String())

	expected := `
# HELP storehub_auth_gate_rejections_total Requests rejected by the authentication gate or permission check, by reason.
# TYPE storehub_auth_gate_rejections_total counter
storehub_auth_gate_rejections_total{reason="insufficient_permission"} 1
storehub_auth_gate_rejections_total{reason="invalid_token"} 1
storehub_auth_gate_rejections_total{reason="unauthenticated"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "storehub_auth_gate_rejections_total"))
}

func TestClientIP_PropagatesToAuditContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, audit.ClientIP(c.Request.Context())) })

	w := get(r, "/", func(req *http.Request) { req.RemoteAddr = "192.0.2.10:4321" })
	assert.Equal(t, "192.0.2.10", w.Body.String())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(r, "/ok", nil)
	get(r, "/boom", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusInternalServerError, entries[1].ContextMap()["status"])
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(60, 2)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow("192.0.2.1"))
	assert.True(t, l.Allow("192.0.2.1"))
	assert.False(t, l.Allow("192.0.2.1"))
	assert.True(t, l.Allow("192.0.2.2"), "budgets are per IP")

	fixed = fixed.Add(time.Second)
	assert.True(t, l.Allow("192.0.2.1"), "one token refills per second at 60/min")

	fixed = fixed.Add(idleLimiterTTL + time.Second)
	assert.Equal(t, 2, l.Prune())
}

func TestIPRateLimiter_Disabled(t *testing.T) {
	l := NewIPRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("192.0.2.1"))
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(NewIPRateLimiter(1, 1), nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
