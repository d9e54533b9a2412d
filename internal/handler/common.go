package handler // handler implements the HTTP endpoints of the API

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/model"
)

// Store contracts consumed by the handlers.  The MySQL repositories
// satisfy them; tests substitute in-memory fakes.

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, email, password, name, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, email string) (model.User, error)
	Delete(ctx context.Context, id uint64) error
}

// TokenStore persists refresh token sessions.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// TaskStore persists tasks.
type TaskStore interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	GetByID(ctx context.Context, id uint64) (model.Task, error)
	ListVisible(ctx context.Context, callerID uint64, isAdmin bool) ([]model.Task, error)
	UpdateStatus(ctx context.Context, id uint64, status string) (model.Task, error)
	CountByOwner(ctx context.Context, ownerID uint64) (int64, error)
}

// userPart is the user shape exposed by the API; the password hash
// never leaves the handler layer.
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// reqCtx bounds the duration of store calls made on behalf of a request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
