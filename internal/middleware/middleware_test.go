package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coffeeshop/internal/config"
	"coffeeshop/internal/domain/model"
	"coffeeshop/internal/infra/auth"
	"coffeeshop/internal/middleware"
	"coffeeshop/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) IncrementTokenVersion(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// =====================
// helper
// =====================

const testSecret = "test-secret"

func mustIssue(t *testing.T, secret string, id int64, role model.Role, tv int) string {
	t.Helper()
	raw, err := auth.IssueToken([]byte(secret), &model.User{ID: id, Role: role, TokenVersion: tv}, time.Now(), time.Hour)
	require.NoError(t, err)
	return raw
}

func runRequest(t *testing.T, e *echo.Echo, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func okHandler(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
	role, _ := c.Get(middleware.CtxUserRoleKey).(model.Role)
	tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: string(role), TokenVersion: tv})
}

// =====================
// AuthJWT
// =====================

func TestMiddleware_AuthJWT_Unauthorized(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "1", "role": "user", "tv": 0, "exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongAlg, err := hs512.SignedString([]byte(testSecret))
	require.NoError(t, err)

	expired, err := auth.IssueToken([]byte(testSecret), &model.User{ID: 1, Role: model.RoleUser}, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bad scheme", "Token abc.def.ghi"},
		{"empty bearer", "Bearer  "},
		{"bad signature", "Bearer " + mustIssue(t, "wrong-secret", 1, model.RoleUser, 0)},
		{"wrong alg", "Bearer " + wrongAlg},
		{"expired", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg))

			rec := runRequest(t, e, "/protected", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

// 正常：ctxに値が入る
func TestMiddleware_AuthJWT_Success_SetsContext(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", okHandler, middleware.AuthJWT(cfg))

	rec := runRequest(t, e, "/protected", "Bearer "+mustIssue(t, testSecret, 123, model.RoleGuest, 7))
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, "guest", body.Role)
	assert.Equal(t, 7, body.TokenVersion)
}

// =====================
// TokenVersionGuard
// =====================

func TestMiddleware_TokenVersionGuard_MissingContext(t *testing.T) {
	e := echo.New()
	userRepo := new(MockUserRepo)
	e.GET("/protected", okHandler, middleware.TokenVersionGuard(userRepo))

	rec := runRequest(t, e, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestMiddleware_TokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	tests := []struct {
		name     string
		user     *model.User
		err      error
		wantCode int
	}{
		{"match", &model.User{ID: 1, Role: model.RoleUser, TokenVersion: 5, IsActive: true}, nil, http.StatusOK},
		{"mismatch", &model.User{ID: 1, Role: model.RoleUser, TokenVersion: 6, IsActive: true}, nil, http.StatusUnauthorized},
		{"inactive", &model.User{ID: 1, Role: model.RoleUser, TokenVersion: 5, IsActive: false}, nil, http.StatusUnauthorized},
		{"not found", nil, repository.ErrNotFound, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := new(MockUserRepo)
			userRepo.On("FindByID", mock.Anything, int64(1)).Return(tt.user, tt.err)

			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))

			rec := runRequest(t, e, "/protected", "Bearer "+mustIssue(t, testSecret, 1, model.RoleUser, 5))
			assert.Equal(t, tt.wantCode, rec.Code)
			userRepo.AssertExpectations(t)
		})
	}
}

// =====================
// RequireCapability
// =====================

func TestMiddleware_RequireCapability(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	tests := []struct {
		name     string
		role     model.Role
		can      func(model.Role) bool
		wantCode int
	}{
		{"admin on admin route", model.RoleAdmin, model.CanAccessAdmin, http.StatusOK},
		{"user on admin route", model.RoleUser, model.CanAccessAdmin, http.StatusForbidden},
		{"guest on favorites", model.RoleGuest, model.CanFavorite, http.StatusForbidden},
		{"user on favorites", model.RoleUser, model.CanFavorite, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.RequireCapability(tt.can, "forbidden"))

			rec := runRequest(t, e, "/protected", "Bearer "+mustIssue(t, testSecret, 1, tt.role, 0))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestMiddleware_RequireCapability_NoRole(t *testing.T) {
	e := echo.New()
	e.GET("/protected", okHandler, middleware.RequireCapability(model.CanAccessAdmin, "admin only"))

	rec := runRequest(t, e, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RequestLogger
// =====================

func TestMiddleware_RequestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(middleware.RequestLogger(zerolog.New(&buf)))
	e.GET("/ping", func(c echo.Context) error {
		c.Set(middleware.CtxUserIDKey, int64(42))
		return c.NoContent(http.StatusNoContent)
	})

	rec := runRequest(t, e, "/ping", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/ping", line["path"])
	assert.Equal(t, float64(http.StatusNoContent), line["status"])
	assert.Equal(t, float64(42), line["user_id"])
	assert.Equal(t, "request completed", line["message"])
}

func TestMiddleware_RequestLogger_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(middleware.RequestLogger(zerolog.New(&buf)))
	e.GET("/boom", func(c echo.Context) error {
		panic(errors.New("boom"))
	})

	rec := runRequest(t, e, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeMWError(t, rec).Error)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}
