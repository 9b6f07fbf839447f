package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wanderatlas/tourism_admin/internal/audit"
	"github.com/wanderatlas/tourism_admin/internal/logging"
	authmw "github.com/wanderatlas/tourism_admin/internal/middleware/auth"
	"github.com/wanderatlas/tourism_admin/internal/service"
	"github.com/wanderatlas/tourism_admin/internal/tokens"
)

type AuthHTTP struct {
	Auth     *service.AuthService
	Accounts *service.AccountService
	Audit    *audit.Logger
}

func (h *AuthHTTP) meta(c echo.Context) audit.Meta {
	return audit.Meta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		var locked *service.AccountLockedError
		switch {
		case errors.As(err, &locked):
			return echo.NewHTTPError(http.StatusLocked, locked.Error())
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrAccountInactive):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		default:
			l.Error("login_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.Audit.Record(ctx, res.Account.ID, "login", "session", "", h.meta(c))

	return c.JSON(http.StatusOK, loginResponse{
		User:         res.Account,
		AccessToken:  res.Pair.AccessToken,
		RefreshToken: res.Pair.RefreshToken,
		ExpiresIn:    expiresIn(res.Pair.AccessExpiresAt),
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token is required")
	}

	access, exp, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, tokens.ErrTokenExpired),
			errors.Is(err, tokens.ErrTokenInvalid),
			errors.Is(err, service.ErrAccountInactive):
			l.Warn("refresh_failed", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
		default:
			l.Error("refresh_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, refreshResponse{
		AccessToken: access,
		ExpiresIn:   expiresIn(exp),
	})
}

// Logout is client-driven: tokens are stateless and there is no
// server-side revocation, so this only records the event.
func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if id, ok := authmw.AccountID(c); ok {
		h.Audit.Record(ctx, id, "logout", "session", "", h.meta(c))
	}
	logging.FromContext(ctx).Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := authmw.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	acc, err := h.Auth.CurrentAccount(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrAccountInactive) {
			return echo.NewHTTPError(http.StatusUnauthorized, "account is not active")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := authmw.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	acc, err := h.Auth.UpdateProfile(ctx, id, service.ProfileUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		case errors.Is(err, service.ErrAccountInactive), errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, "account is not active")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.Audit.Record(ctx, id, "profile_update", "account", tokens.Subject(id), h.meta(c))
	return c.JSON(http.StatusOK, acc)
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := authmw.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err := h.Auth.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, service.ErrAccountInactive), errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, "account is not active")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.Audit.Record(ctx, id, "password_change", "account", tokens.Subject(id), h.meta(c))
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// ForgotPassword always answers the same message so the endpoint
// cannot be used to enumerate accounts.
func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.Auth.ForgotPassword(ctx, req.Email); err != nil {
		logging.FromContext(ctx).Error("forgot_password_failed", "error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "if the account exists, a reset link has been sent",
	})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrResetTokenInvalid):
			return echo.NewHTTPError(http.StatusUnauthorized, "reset token invalid or expired")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
