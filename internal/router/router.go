// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/handler"
	"github.com/iliyamo/identity-service/internal/middleware"
	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/ratelimit"
	"github.com/iliyamo/identity-service/internal/response"
	"github.com/iliyamo/identity-service/internal/utils"
)

// Deps is everything New needs to assemble the HTTP surface.
type Deps struct {
	Log     *zap.Logger
	Issuer  *utils.TokenIssuer
	Users   middleware.UserLoader
	Gate    middleware.GateConfig
	Limiter *ratelimit.Limiter
	Cache   *middleware.ResponseCache // nil disables response caching
	Metrics http.Handler              // nil serves the default Prometheus registry

	Auth    *handler.AuthHandler
	Profile *handler.UserHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler
}

// New builds the echo instance.  Middleware order: panic recovery, request
// logging, rate limiting, then the authentication gate.  Route groups add
// their own guards on top.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = response.ErrorHandler(d.Log)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(middleware.RateLimit(d.Limiter))
	e.Use(middleware.Authenticate(d.Issuer, d.Users, d.Gate, d.Log))

	RegisterRoutes(e, d.Health, d.Metrics)
	RegisterAuth(e, d.Auth)
	RegisterUser(e, d.Profile, d.Cache)
	RegisterAdmin(e, d.Admin)
	return e
}

// RegisterRoutes registers the operational endpoints that never require a
// session.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, metrics http.Handler) {
	if h != nil {
		e.GET("/healthz", h.Health)
	}
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	e.GET("/metrics", echo.WrapHandler(metrics))
}

// RegisterAuth registers the /auth endpoints.  All but logout are public;
// logout needs the caller's identity.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.Refresh)
	g.POST("/resend-otp", a.ResendOTP)
	g.POST("/activate", a.Activate)
	g.DELETE("/logout", a.Logout, middleware.RequireAuth())
}

// RegisterUser registers the caller's profile endpoints.  GET /users/me is
// served through the response cache; the update evicts it.
func RegisterUser(e *echo.Echo, u *handler.UserHandler, cache *middleware.ResponseCache) {
	g := e.Group("/users", middleware.RequireAuth())
	g.GET("/me", u.Me, cache.Middleware())
	g.PUT("/me/update", u.UpdateMe)
}

// RegisterAdmin registers maintenance endpoints.  Session revocation is for
// administrators; rate-limit inspection follows the manager permissions,
// which administrators also hold.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler) {
	g := e.Group("/admin", middleware.RequireAuth())
	g.DELETE("/users/:id/sessions", a.RevokeSessions, middleware.RequireRole(model.RoleAdmin))
	g.GET("/rate-limits/:class/:identifier", a.RateLimitStatus, middleware.RequirePermission(model.PermManagerRead))
	g.DELETE("/rate-limits/:class/:identifier", a.ResetRateLimit, middleware.RequirePermission(model.PermManagerDelete))
}
