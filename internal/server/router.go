// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	audithandler "storehub/backend/internal/audit/handler"
	healthhandler "storehub/backend/internal/health/handler"
	identityhandler "storehub/backend/internal/identity/handler"
	"storehub/backend/internal/metrics"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/server/middleware"
	sessionhandler "storehub/backend/internal/session/handler"
)

// Route declares one endpoint. A non-empty Permission is enforced by middleware.RequirePermission
// after the authentication gate. Pre runs before the permission check.
type Route struct {
	Method     string
	Path       string
	Permission rbac.Permission
	Pre        []gin.HandlerFunc
	Handler    gin.HandlerFunc
}

// RouterDeps holds the handlers and collaborators of the HTTP router.
type RouterDeps struct {
	Auth    *identityhandler.AuthHandler
	Session *sessionhandler.Handler
	Audit   *audithandler.Handler
	Health  *healthhandler.HTTP

	Resolver         middleware.PrincipalResolver
	Authorizer       rbac.Authorizer
	AccessCookieName string
	LoginLimiter     *middleware.IPRateLimiter

	Metrics        *metrics.Auth
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// Routes returns the API route table. Routes whose handler is not configured are omitted.
func Routes(deps RouterDeps) []Route {
	var routes []Route
	if deps.Auth != nil {
		var loginPre []gin.HandlerFunc
		if deps.LoginLimiter != nil {
			loginPre = append(loginPre, middleware.RateLimit(deps.LoginLimiter, deps.Logger))
		}
		routes = append(routes,
			Route{Method: http.MethodPost, Path: "/api/auth/login", Pre: loginPre, Handler: deps.Auth.Login},
			Route{Method: http.MethodPost, Path: "/api/auth/refresh", Handler: deps.Auth.Refresh},
			Route{Method: http.MethodPost, Path: "/api/auth/logout", Handler: deps.Auth.Logout},
			Route{Method: http.MethodGet, Path: "/api/auth/me", Handler: deps.Auth.Me},
		)
	}
	if deps.Session != nil {
		routes = append(routes,
			Route{Method: http.MethodGet, Path: "/api/admin/accounts/:id/session", Permission: rbac.PermSessionsRead, Handler: deps.Session.Get},
			Route{Method: http.MethodDelete, Path: "/api/admin/accounts/:id/session", Permission: rbac.PermSessionsRevoke, Handler: deps.Session.Revoke},
		)
	}
	if deps.Audit != nil {
		routes = append(routes,
			Route{Method: http.MethodGet, Path: "/api/admin/audit", Permission: rbac.PermAuditRead, Handler: deps.Audit.List},
		)
	}
	return routes
}

// NewRouter returns a gin engine serving the health and metrics endpoints and every route of Routes.
// The authentication gate applies to all API routes; only routes with a Permission, and /api/auth/me,
// require a principal.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	authz := deps.Authorizer
	if authz == nil {
		authz = rbac.StaticAuthorizer{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger), middleware.ClientIP())

	health := deps.Health
	if health == nil {
		health = healthhandler.NewHTTP(nil, deps.Logger)
	}
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := r.Group("")
	if deps.Resolver != nil {
		api.Use(middleware.Authenticate(deps.Resolver, deps.AccessCookieName, deps.Logger))
	}
	for _, rt := range Routes(deps) {
		chain := append([]gin.HandlerFunc{}, rt.Pre...)
		if rt.Permission != "" {
			chain = append(chain, middleware.RequirePermission(authz, rt.Permission, deps.Metrics))
		}
		chain = append(chain, rt.Handler)
		api.Handle(rt.Method, rt.Path, chain...)
	}
	return r
}
