package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wanderatlas/tourism_admin/internal/audit"
	"github.com/wanderatlas/tourism_admin/internal/models"
	"github.com/wanderatlas/tourism_admin/internal/service"
	"github.com/wanderatlas/tourism_admin/internal/tokens"
)

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	H      *AuthHTTP
	Tokens *tokens.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.ResourceGrant{},
		&models.ActivityLog{},
		&models.PasswordReset{},
	))

	tokenSvc := tokens.NewService([]byte("test-access"), []byte("test-refresh"))
	authSvc := &service.AuthService{DB: db, Tokens: tokenSvc}

	return &testEnv{
		E:      echo.New(),
		DB:     db,
		Tokens: tokenSvc,
		H: &AuthHTTP{
			Auth:     authSvc,
			Accounts: &service.AccountService{DB: db},
			Audit:    audit.NewLogger(db),
		},
	}
}

func (env *testEnv) createAccount(t *testing.T, email, password string, role models.Role) *models.Account {
	t.Helper()
	acc, err := env.H.Accounts.Create(context.Background(), service.CreateAccountInput{
		Email:    email,
		Name:     "Test User",
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
	return acc
}

func (env *testEnv) doJSON(method, path string, payload any) (*httptest.ResponseRecorder, echo.Context) {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

func TestLoginHandler_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createAccount(t, "admin@example.com", "secret123", models.RolePlatformAdmin)

	rec, c := env.doJSON(http.MethodPost, "/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "secret123",
	})
	require.NoError(t, env.H.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Greater(t, resp.ExpiresIn, int64(0))
	require.NotNil(t, resp.User)
	assert.Equal(t, "admin@example.com", resp.User.Email)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	// The login is audited.
	entries, err := env.H.Audit.List(context.Background(), resp.User.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "login", entries[0].Action)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createAccount(t, "user@example.com", "secret123", models.RoleEditor)

	_, c := env.doJSON(http.MethodPost, "/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "nope",
	})
	err := env.H.Login(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLoginHandler_LockedAccountReturns423(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	acc := env.createAccount(t, "locked@example.com", "secret123", models.RoleEditor)

	until := time.Now().Add(90 * time.Minute)
	require.NoError(t, env.DB.Model(acc).Updates(map[string]any{
		"failed_login_count": 5,
		"lock_until":         until,
	}).Error)

	_, c := env.doJSON(http.MethodPost, "/auth/login", map[string]string{
		"email":    "locked@example.com",
		"password": "secret123",
	})
	err := env.H.Login(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusLocked, he.Code)
	assert.Contains(t, he.Message, "retry in")
}

func TestRefreshHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createAccount(t, "refresh@example.com", "secret123", models.RoleEditor)

	rec, c := env.doJSON(http.MethodPost, "/auth/login", map[string]string{
		"email":    "refresh@example.com",
		"password": "secret123",
	})
	require.NoError(t, env.H.Login(c))
	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	t.Run("valid refresh token", func(t *testing.T) {
		rec, c := env.doJSON(http.MethodPost, "/auth/refresh", map[string]string{
			"refreshToken": login.RefreshToken,
		})
		require.NoError(t, env.H.Refresh(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp refreshResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		claims, err := env.Tokens.ParseAccess(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, models.RoleEditor, claims.Role)
	})

	t.Run("access token rejected", func(t *testing.T) {
		_, c := env.doJSON(http.MethodPost, "/auth/refresh", map[string]string{
			"refreshToken": login.AccessToken,
		})
		err := env.H.Refresh(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "expected HTTPError")
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		_, c := env.doJSON(http.MethodPost, "/auth/refresh", map[string]string{})
		err := env.H.Refresh(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "expected HTTPError")
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func TestForgotPasswordHandler_NoEnumeration(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createAccount(t, "known@example.com", "secret123", models.RoleEditor)

	for _, email := range []string{"known@example.com", "unknown@example.com"} {
		rec, c := env.doJSON(http.MethodPost, "/auth/forgot-password", map[string]string{"email": email})
		require.NoError(t, env.H.ForgotPassword(c))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "if the account exists")
	}
}

func TestCreateUserHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodPost, "/auth/users", map[string]any{
		"email":    "new@example.com",
		"name":     "New User",
		"password": "secret123",
		"role":     "poi_owner",
	})
	require.NoError(t, env.H.CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var acc models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, models.RolePOIOwner, acc.Role)
	assert.True(t, acc.Permissions["pois"]["create"])

	// Duplicate email conflicts.
	_, c = env.doJSON(http.MethodPost, "/auth/users", map[string]any{
		"email":    "new@example.com",
		"password": "secret123",
		"role":     "editor",
	})
	err := env.H.CreateUser(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusConflict, he.Code)
}
