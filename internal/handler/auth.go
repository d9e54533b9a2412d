package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/config"
	"go-task-tracker/internal/model"
	"go-task-tracker/internal/repository"
	"go-task-tracker/internal/utils"
	"go-task-tracker/pkg/apierror"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResp struct {
	User         userPart `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

// Register creates a user account.  Every self-registered account gets
// the "user" role; admins are provisioned out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "email, password and name are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.Name, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apierror.Write(c, http.StatusConflict, apierror.CodeConflict, "email already exists")
		}
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "create user failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user": userPart{ID: uid, Email: req.Email, Name: req.Name, Role: model.RoleUser},
	})
}

// Login verifies credentials and opens a session: a short-lived access
// token plus a persisted, revocable refresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "email and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid credentials")
		}
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid credentials")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "save refresh failed")
	}

	return c.JSON(http.StatusOK, loginResp{
		User:         toUserPart(u),
		AccessToken:  access.Token,
		RefreshToken: refresh.Raw, // raw value goes back to the client
	})
}

// Refresh mints a new access token from a valid refresh token.  The
// refresh token itself is not rotated; clients wanting rotation call
// RefreshRotate instead.
func (h *AuthHandler) Refresh(c echo.Context) error {
	hash, errResp := bindRefreshHash(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshInvalid) {
			return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid refresh token")
		}
		// A store failure is not a verdict on the token; never answer
		// 401 for it or clients will discard a still-valid session.
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "validate refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid refresh token")
		}
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "load user failed")
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "issue access failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"accessToken": access.Token})
}

// RefreshRotate exchanges a valid refresh token for a new token pair,
// revoking the old refresh token in the process.
func (h *AuthHandler) RefreshRotate(c echo.Context) error {
	hash, errResp := bindRefreshHash(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshInvalid) {
			return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid refresh token")
		}
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "validate refresh failed")
	}
	// The old token must be dead before a replacement exists; a failed
	// revoke aborts the rotation instead of leaving both tokens live.
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "revoke refresh failed")
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "load user failed")
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "save refresh failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  access.Token,
		"refreshToken": refresh.Raw,
	})
}

// Logout terminates a session.  With a refreshToken in the body that
// single session is revoked; revoking an already revoked or unknown
// token is not an error.  With only a Bearer token, every session of
// the caller is revoked.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if raw != "" {
		if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw)); err != nil {
			return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "logout failed")
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
	}

	// No refresh token: fall back to the access token and revoke all
	// sessions of the caller.
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return apierror.Write(c, http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid token")
		}
		if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
			return apierror.Write(c, http.StatusInternalServerError, apierror.CodeInternal, "logout failed")
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
	}

	return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "provide refreshToken or Authorization header")
}

// bindRefreshHash extracts and hashes the refresh token from the body.
// It returns a deferred error writer so callers keep a one-line guard.
func bindRefreshHash(c echo.Context) (string, func(echo.Context) error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return "", func(c echo.Context) error {
			return apierror.Write(c, http.StatusBadRequest, apierror.CodeValidation, "refreshToken is required")
		}
	}
	return utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)), nil
}
