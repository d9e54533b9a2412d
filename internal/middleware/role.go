package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/access"
	"go-task-tracker/pkg/apierror"
)

// RequireRole is the static role gate.  It admits the request iff the
// authenticated principal's role is in the allowed set; the check is
// pure, synchronous and touches no I/O.  It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok {
				return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
			}
			if d := access.RoleAllowed(p, roles...); !d.Allowed {
				return apierror.Write(c, http.StatusForbidden, apierror.CodeForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
