package middleware // middleware contains reusable HTTP middleware for the API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/access"
	"go-task-tracker/internal/utils"
	"go-task-tracker/pkg/apierror"
)

// principalKey is the echo context key under which the authenticated
// principal is stored.
const principalKey = "principal"

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and stores the resulting principal in the request context.
// Verification is stateless: the signature and expiry are checked
// against the signing secret, no store lookup happens.  Handlers and
// downstream middleware read the caller via CurrentPrincipal.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid or expired token")
			}

			c.Set(principalKey, access.Principal{UserID: claims.UserID, Role: claims.Role})
			return next(c)
		}
	}
}

// CurrentPrincipal returns the authenticated caller stored by JWTAuth.
// The second return value is false when the request never passed the
// authentication middleware.
func CurrentPrincipal(c echo.Context) (access.Principal, bool) {
	p, ok := c.Get(principalKey).(access.Principal)
	return p, ok
}
