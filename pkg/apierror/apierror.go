// Package apierror defines the uniform error body returned by every
// endpoint: {"error":{"code":"...","message":"..."}}.  Handlers and
// middleware share it so clients can rely on a single error shape.
package apierror

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Error codes used across the API.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL"
)

// APIError is a single API failure with its wire representation.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type envelope struct {
	Error APIError `json:"error"`
}

// Write sends the uniform error envelope with the given HTTP status.
func Write(c echo.Context, status int, code, message string) error {
	return c.JSON(status, envelope{Error: APIError{Code: code, Message: message}})
}
