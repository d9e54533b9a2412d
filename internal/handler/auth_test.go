package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-task-tracker/internal/config"
	"go-task-tracker/internal/handler"
	"go-task-tracker/internal/middleware"
	"go-task-tracker/internal/model"
	"go-task-tracker/internal/router"
)

// Full session lifecycle: register, login, fetch the profile, mint a
// fresh access token, log out, and verify the refresh token is dead.
func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	const email = "user@test.com"
	const password = "123456"

	// register
	rec := env.doJSON(t, "POST", "/v1/auth/register", "", map[string]string{
		"email": email, "password": password, "name": "User A",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, email, user["email"])

	// the stored credential is a hash, never the plaintext
	stored, err := env.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	assert.NotEqual(t, password, stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)

	// login
	access, refresh := env.loginAs(t, email, password)

	// me
	rec = env.doJSON(t, "GET", "/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, email, decodeBody(t, rec)["email"])

	// refresh issues a new access token without rotating
	rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess, _ := decodeBody(t, rec)["accessToken"].(string)
	assert.NotEmpty(t, newAccess)

	// logout revokes the refresh token
	rec = env.doJSON(t, "POST", "/v1/auth/logout", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	// a revoked token never refreshes again
	rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	for name, body := range map[string]map[string]string{
		"missing email":    {"password": "123456", "name": "A"},
		"missing password": {"email": "a@b.c", "name": "A"},
		"missing name":     {"email": "a@b.c", "password": "123456"},
	} {
		rec := env.doJSON(t, "POST", "/v1/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR", name)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "dup@test.com", "pw", "First", model.RoleUser)

	rec := env.doJSON(t, "POST", "/v1/auth/register", "", map[string]string{
		"email": "dup@test.com", "password": "pw2", "name": "Second",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user@test.com", "right", "U", model.RoleUser)

	rec := env.doJSON(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "user@test.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "nobody@test.com", "password": "right",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotate_InvalidatesOldToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user@test.com", "pw", "U", model.RoleUser)
	_, refresh := env.loginAs(t, "user@test.com", "pw")

	rec := env.doJSON(t, "POST", "/v1/auth/refresh/rotate", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	newRefresh, _ := body["refreshToken"].(string)
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, refresh, newRefresh)

	// old token is revoked, new one works
	rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": newRefresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// flakyTokens wraps the in-memory token store with injectable failures
// to exercise the store-outage paths.
type flakyTokens struct {
	*memTokens
	validateErr error
	revokeErr   error
}

func (f *flakyTokens) ValidateRefresh(ctx context.Context, hash string) (uint64, error) {
	if f.validateErr != nil {
		return 0, f.validateErr
	}
	return f.memTokens.ValidateRefresh(ctx, hash)
}

func (f *flakyTokens) RevokeByHash(ctx context.Context, hash string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	return f.memTokens.RevokeByHash(ctx, hash)
}

func newFlakyTokenEnv(t *testing.T) (*testEnv, *flakyTokens) {
	t.Helper()
	env := newTestEnv(t, nil)
	ft := &flakyTokens{memTokens: env.tokens}

	e := echo.New()
	router.RegisterAuth(e, handler.NewAuthHandler(testConfig(), env.users, ft),
		middleware.RateLimit(config.RateLimitConfig{}, nil))
	env.e = e
	return env, ft
}

// A store outage during refresh is a server error, never a token
// verdict; answering 401 would make clients discard a still-valid
// session.
func TestRefresh_StoreFailureIsServerError(t *testing.T) {
	env, ft := newFlakyTokenEnv(t)
	env.seedUser(t, "user@test.com", "pw", "U", model.RoleUser)
	_, refresh := env.loginAs(t, "user@test.com", "pw")

	ft.validateErr = errors.New("connection refused")
	for _, path := range []string{"/v1/auth/refresh", "/v1/auth/refresh/rotate"} {
		rec := env.doJSON(t, "POST", path, "", map[string]string{"refreshToken": refresh})
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "INTERNAL", path)
	}

	// the session survives once the store recovers
	ft.validateErr = nil
	rec := env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// A rotation that cannot revoke the old token must not issue a new
// pair; otherwise both tokens stay live.
func TestRefreshRotate_RevokeFailureAbortsRotation(t *testing.T) {
	env, ft := newFlakyTokenEnv(t)
	env.seedUser(t, "user@test.com", "pw", "U", model.RoleUser)
	_, refresh := env.loginAs(t, "user@test.com", "pw")

	ft.revokeErr = errors.New("connection refused")
	rec := env.doJSON(t, "POST", "/v1/auth/refresh/rotate", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refreshToken", "no replacement pair may be issued")

	// the rotation did not half-happen: the old token still refreshes
	ft.revokeErr = nil
	rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout_BearerRevokesAllSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user@test.com", "pw", "U", model.RoleUser)
	access, refresh1 := env.loginAs(t, "user@test.com", "pw")
	_, refresh2 := env.loginAs(t, "user@test.com", "pw")

	rec := env.doJSON(t, "POST", "/v1/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, r := range []string{refresh1, refresh2} {
		rec = env.doJSON(t, "POST", "/v1/auth/refresh", "", map[string]string{"refreshToken": r})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestLogout_NoCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.doJSON(t, "POST", "/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, route := range []struct{ method, path string }{
		{"GET", "/v1/users/me"},
		{"GET", "/v1/tasks"},
		{"POST", "/v1/tasks"},
	} {
		rec := env.doJSON(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}
