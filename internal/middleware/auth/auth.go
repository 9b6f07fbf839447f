package authmw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wanderatlas/tourism_admin/internal/models"
	"github.com/wanderatlas/tourism_admin/internal/permission"
	"github.com/wanderatlas/tourism_admin/internal/service"
	"github.com/wanderatlas/tourism_admin/internal/tokens"
)

const (
	ctxAccountID = "account_id"
	ctxRole      = "role"
	ctxAccount   = "account"
)

type Middleware struct {
	Tokens *tokens.Service
	Auth   *service.AuthService
	Engine *permission.Engine
}

// RequireAuth validates the bearer access token and stashes the
// subject in the request context. Expired and invalid tokens are both
// 401 but with distinct messages so clients know whether to refresh.
func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Tokens.ParseAccess(raw)
		if err != nil {
			if errors.Is(err, tokens.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		id, err := tokens.ParseSubject(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(ctxAccountID, id)
		c.Set(ctxRole, claims.Role)
		return next(c)
	}
}

// RequirePermission loads the live account and gates the route on the
// permission engine. Suspended accounts get 401, missing permissions
// 403 -- authorization failure is never conflated with authentication.
func (m *Middleware) RequirePermission(cap permission.Capability, action permission.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, err := m.loadAccount(c)
			if err != nil {
				return err
			}
			if !m.Engine.Has(acc, cap, action) {
				return echo.NewHTTPError(http.StatusForbidden, "permission denied")
			}
			c.Set(ctxAccount, acc)
			return next(c)
		}
	}
}

// RequireResourceAccess additionally enforces the ownership grant for
// poi_owner accounts; the resource id is taken from the named path
// parameter.
func (m *Middleware) RequireResourceAccess(cap permission.Capability, action permission.Action, param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, err := m.loadAccount(c)
			if err != nil {
				return err
			}
			ok, err := m.Engine.CanAccessResource(c.Request().Context(), acc, cap, action, c.Param(param))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "permission denied")
			}
			c.Set(ctxAccount, acc)
			return next(c)
		}
	}
}

func (m *Middleware) loadAccount(c echo.Context) (*models.Account, error) {
	if acc, ok := c.Get(ctxAccount).(*models.Account); ok {
		return acc, nil
	}
	id, ok := c.Get(ctxAccountID).(uint)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	acc, err := m.Auth.CurrentAccount(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAccountInactive) || errors.Is(err, service.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "account is not active")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return acc, nil
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// AccountID returns the authenticated subject set by RequireAuth.
func AccountID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ctxAccountID).(uint)
	return id, ok
}

// Account returns the loaded account set by the permission middleware.
func Account(c echo.Context) (*models.Account, bool) {
	acc, ok := c.Get(ctxAccount).(*models.Account)
	return acc, ok
}
