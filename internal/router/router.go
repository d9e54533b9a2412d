// Package router wires HTTP routes to handlers and middleware.  The
// authorization pipeline is composed explicitly per route: authenticate
// (JWT), then the rate limiter (so user-scoped buckets see the caller),
// then the static role gate, then the attribute gate on resource
// routes, then the idempotency interceptor for retried writes.
package router

import (
	"time"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/access"
	"go-task-tracker/internal/handler"
	"go-task-tracker/internal/middleware"
	"go-task-tracker/internal/model"
)

// RegisterHealth registers routes that require no authentication.
func RegisterHealth(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints under /v1/auth.  None of
// them carry the JWT middleware; logout inspects the Authorization
// header itself so it also works with only a refresh token in hand.
// The rate limiter buckets these routes by IP, since no principal is
// established yet.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rl echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", rl)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Default refresh does not rotate; the explicit variant does.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh/rotate", a.RefreshRotate)
	g.POST("/logout", a.Logout)
}

// RegisterUsers registers the profile endpoints and the admin-only
// user listing under /v1/users.  The rate limiter runs after JWTAuth
// so user-scoped bucket keys resolve to the authenticated caller.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string, rl echo.MiddlewareFunc) {
	g := e.Group("/v1/users", middleware.JWTAuth(jwtSecret), rl)
	g.GET("/me", u.Me)
	g.PUT("/me", u.UpdateMe)
	g.DELETE("/me", u.DeleteMe)
	g.GET("", u.List, middleware.RequireRole(model.RoleAdmin))
}

// RegisterTasks registers the task endpoints under /v1/tasks.  Create
// is wrapped by the idempotency interceptor; the single-task routes
// carry the attribute gate with the appropriate capability.
func RegisterTasks(e *echo.Echo, t *handler.TaskHandler, jwtSecret string,
	idem middleware.IdempotencyStore, idemTTL time.Duration, loadTask middleware.TaskLoader,
	rl echo.MiddlewareFunc) {

	g := e.Group("/v1/tasks",
		middleware.JWTAuth(jwtSecret),
		rl,
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.GET("", t.List)
	g.POST("", t.Create, middleware.Idempotency(idem, idemTTL))
	g.GET("/:id", t.Get, middleware.RequireTaskAccess(loadTask, access.TaskVisible))
	g.PATCH("/:id/status", t.UpdateStatus, middleware.RequireTaskAccess(loadTask, access.TaskOwnerOrAdmin))
}
