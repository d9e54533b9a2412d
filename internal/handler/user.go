package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/middleware"
	"go-task-tracker/internal/repository"
	"go-task-tracker/pkg/apierror"
)

// UserHandler serves the /users surface: the caller's own profile and
// the admin-only user listing.
type UserHandler struct {
	Users  UserStore
	Tasks  TaskStore
	Tokens TokenStore
}

func NewUserHandler(u UserStore, t TaskStore, tok TokenStore) *UserHandler {
	return &UserHandler{Users: u, Tasks: t, Tokens: tok}
}

type updateMeReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Me returns the authenticated caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "account no longer exists")
		}
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "load user failed")
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// UpdateMe changes the caller's name and/or email.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
	}
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid body")
	}
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Email) == "" {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "nothing to update")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, p.UserID, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apierror.Write(c, http.StatusConflict, apierror.CodeConflict, "email already exists")
		}
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "update failed")
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// DeleteMe removes the caller's account.  Accounts that still own
// tasks cannot be deleted; the tasks must be removed or handed over
// first, otherwise the delete answers 409.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Tasks.CountByOwner(ctx, p.UserID)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "delete failed")
	}
	if n > 0 {
		return apierror.Write(c, http.StatusConflict, apierror.CodeConflict, "account still owns tasks")
	}
	if err := h.Users.Delete(ctx, p.UserID); err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "delete failed")
	}
	// Deleting the account invalidates every open session.
	_ = h.Tokens.RevokeAllForUser(ctx, p.UserID)
	return c.JSON(http.StatusOK, echo.Map{"message": "account deleted"})
}

// List returns every registered user.  The route is admin-gated by the
// role middleware.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "list users failed")
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPart(u))
	}
	return c.JSON(http.StatusOK, out)
}
