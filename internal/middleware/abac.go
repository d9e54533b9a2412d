package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/access"
	"go-task-tracker/internal/model"
	"go-task-tracker/internal/repository"
	"go-task-tracker/pkg/apierror"
)

// taskKey is the echo context key under which the loaded task snapshot
// is stored for the downstream handler.
const taskKey = "abac_task"

// TaskLoader fetches the task snapshot a policy will be evaluated
// against.  Implemented by TaskRepo.GetByID.
type TaskLoader func(ctx context.Context, id uint64) (model.Task, error)

// RequireTaskAccess is the attribute gate.  It loads the task named by
// the :id path parameter and evaluates the given policy against the
// caller.  Denials are a uniform 403 FORBIDDEN regardless of the
// reason; in particular a missing task is indistinguishable from a
// task owned by someone else, so existence is never observable to
// unauthorized callers.  Loader failures other than not-found are
// propagated as 500, never folded into a denial.
//
// On success the loaded snapshot is stored in the context; the handler
// retrieves it via TaskFromContext instead of re-reading the store.
func RequireTaskAccess(load TaskLoader, policy access.TaskPolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok {
				return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
			}
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil || id == 0 {
				return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid task id")
			}

			t, err := load(c.Request().Context(), id)
			if errors.Is(err, repository.ErrTaskNotFound) {
				return apierror.Write(c, http.StatusForbidden, apierror.CodeForbidden, "access denied")
			}
			if err != nil {
				c.Logger().Errorf("abac: load task %d: %v", id, err)
				return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "internal error")
			}

			if d := policy(p, t); !d.Allowed {
				return apierror.Write(c, http.StatusForbidden, apierror.CodeForbidden, "access denied")
			}

			c.Set(taskKey, t)
			return next(c)
		}
	}
}

// TaskFromContext returns the task snapshot loaded by RequireTaskAccess.
func TaskFromContext(c echo.Context) (model.Task, bool) {
	t, ok := c.Get(taskKey).(model.Task)
	return t, ok
}
