package handler_test

// In-memory store fakes implementing the handler store contracts, plus
// a helper that assembles a fully routed Echo instance around them.
// The HTTP scenarios below exercise the real middleware pipeline; only
// MySQL is replaced.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"go-task-tracker/internal/config"
	"go-task-tracker/internal/handler"
	"go-task-tracker/internal/middleware"
	"go-task-tracker/internal/model"
	"go-task-tracker/internal/repository"
	"go-task-tracker/internal/router"
	"go-task-tracker/internal/utils"
)

const (
	testSecret = "handler-test-secret"
	testBcrypt = 4 // minimal cost keeps the suite fast
)

// ----- users -----

type memUsers struct {
	mu   sync.Mutex
	seq  uint64
	byID map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (s *memUsers) Create(ctx context.Context, email, password, name, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	s.seq++
	now := time.Now().UTC()
	s.byID[s.seq] = model.User{
		ID: s.seq, Email: email, PasswordHash: hash, Name: name, Role: role,
		CreatedAt: now, UpdatedAt: now,
	}
	return s.seq, nil
}

func (s *memUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (s *memUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *memUsers) List(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, u := range s.byID {
		out = append(out, u)
	}
	return out, nil
}

func (s *memUsers) UpdateProfile(ctx context.Context, id uint64, name, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		for oid, other := range s.byID {
			if oid != id && other.Email == e {
				return model.User{}, repository.ErrEmailExists
			}
		}
		u.Email = e
	}
	if n := strings.TrimSpace(name); n != "" {
		u.Name = n
	}
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	return u, nil
}

func (s *memUsers) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.byID, id)
	return nil
}

// ----- refresh tokens -----

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]*model.RefreshToken{}} }

func (s *memTokens) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tokenHash] = &model.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *memTokens) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[tokenHash]
	if !ok || row.IsRevoked() || row.IsExpired(time.Now().UTC()) {
		return 0, repository.ErrRefreshInvalid
	}
	return row.UserID, nil
}

func (s *memTokens) RevokeByHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[tokenHash]; ok && !row.IsRevoked() {
		now := time.Now().UTC()
		row.RevokedAt = &now
	}
	return nil
}

func (s *memTokens) RevokeAllForUser(ctx context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRevoked() {
			row.RevokedAt = &now
		}
	}
	return nil
}

// ----- tasks -----

type memTasks struct {
	mu   sync.Mutex
	seq  uint64
	byID map[uint64]model.Task
}

func newMemTasks() *memTasks { return &memTasks{byID: map[uint64]model.Task{}} }

func (s *memTasks) Create(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t.ID = s.seq
	t.CreatedAt = time.Now().UTC()
	s.byID[t.ID] = t
	return t, nil
}

func (s *memTasks) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return model.Task{}, repository.ErrTaskNotFound
	}
	return t, nil
}

func (s *memTasks) ListVisible(ctx context.Context, callerID uint64, isAdmin bool) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Task{}
	for _, t := range s.byID {
		if isAdmin || t.IsPublic || t.OwnerID == callerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTasks) UpdateStatus(ctx context.Context, id uint64, status string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return model.Task{}, repository.ErrTaskNotFound
	}
	t.Status = status
	s.byID[id] = t
	return t, nil
}

func (s *memTasks) CountByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.byID {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// ----- idempotency -----

type memIdem struct {
	mu   sync.Mutex
	rows map[string]model.IdempotencyRecord
}

func newMemIdem() *memIdem { return &memIdem{rows: map[string]model.IdempotencyRecord{}} }

func idemScope(userID uint64, endpoint, key string) string {
	return fmt.Sprintf("%d|%s|%s", userID, endpoint, key)
}

func (s *memIdem) Check(ctx context.Context, userID uint64, endpoint, key string) (model.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[idemScope(userID, endpoint, key)]
	if !ok || time.Now().UTC().After(rec.ExpiresAt) {
		return model.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *memIdem) Record(ctx context.Context, rec model.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemScope(rec.UserID, rec.Endpoint, rec.Key)
	if old, ok := s.rows[k]; ok && time.Now().UTC().Before(old.ExpiresAt) {
		return nil // first write wins
	}
	s.rows[k] = rec
	return nil
}

// ----- wiring -----

type testEnv struct {
	e      *echo.Echo
	users  *memUsers
	tokens *memTokens
	tasks  *memTasks
	idem   *memIdem
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		JWTSecret:      testSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     testBcrypt,
		IdempotencyTTL: 24 * time.Hour,
	}
}

func newTestEnv(t *testing.T, publish handler.TaskEventPublisher) *testEnv {
	t.Helper()
	cfg := testConfig()
	env := &testEnv{
		users:  newMemUsers(),
		tokens: newMemTokens(),
		tasks:  newMemTasks(),
		idem:   newMemIdem(),
	}

	// Disabled limiter config yields a passthrough.
	rl := middleware.RateLimit(config.RateLimitConfig{}, nil)

	e := echo.New()
	router.RegisterHealth(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, env.users, env.tokens), rl)
	router.RegisterUsers(e, handler.NewUserHandler(env.users, env.tasks, env.tokens), cfg.JWTSecret, rl)
	router.RegisterTasks(e, handler.NewTaskHandler(env.tasks, publish), cfg.JWTSecret,
		env.idem, cfg.IdempotencyTTL, env.tasks.GetByID, rl)
	env.e = e
	return env
}

// seedUser inserts a user directly into the store and returns its ID.
func (env *testEnv) seedUser(t *testing.T, email, password, name, role string) uint64 {
	t.Helper()
	id, err := env.users.Create(context.Background(), email, password, name, role, testBcrypt)
	require.NoError(t, err)
	return id
}

// loginAs runs a real login request and returns the token pair.
func (env *testEnv) loginAs(t *testing.T, email, password string) (access, refresh string) {
	t.Helper()
	rec := env.doJSON(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, 200, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	access, _ = body["accessToken"].(string)
	refresh, _ = body["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

func (env *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return env.doJSONWithHeaders(t, method, path, token, body, nil)
}

func (env *testEnv) doJSONWithHeaders(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		reader = strings.NewReader(mustJSON(t, body))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeTasks(t *testing.T, rec *httptest.ResponseRecorder) []model.Task {
	t.Helper()
	out := []model.Task{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
