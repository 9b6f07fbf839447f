package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	authmw "github.com/wanderatlas/tourism_admin/internal/middleware/auth"
	"github.com/wanderatlas/tourism_admin/internal/service"
	"github.com/wanderatlas/tourism_admin/internal/tokens"
)

func (h *AuthHTTP) ListUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	users, total, err := h.Accounts.List(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, listUsersResponse{Users: users, Total: total})
}

func (h *AuthHTTP) GetUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	acc, err := h.Accounts.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AuthHTTP) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	acc, err := h.Accounts.Create(ctx, service.CreateAccountInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		Status:   req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	if actorID, ok := authmw.AccountID(c); ok {
		h.Audit.Record(ctx, actorID, "user_create", "user", tokens.Subject(acc.ID), h.meta(c))
	}
	return c.JSON(http.StatusCreated, acc)
}

func (h *AuthHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := userID(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	acc, err := h.Accounts.Update(ctx, id, service.UpdateAccountInput{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		Role:             req.Role,
		Status:           req.Status,
		Permissions:      req.Permissions,
		ResetPermissions: req.ResetPermissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	if actorID, ok := authmw.AccountID(c); ok {
		h.Audit.Record(ctx, actorID, "user_update", "user", tokens.Subject(id), h.meta(c))
	}
	return c.JSON(http.StatusOK, acc)
}

func (h *AuthHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := userID(c)
	if err != nil {
		return err
	}
	if actorID, ok := authmw.AccountID(c); ok && actorID == id {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot delete own account")
	}

	if err := h.Accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if actorID, ok := authmw.AccountID(c); ok {
		h.Audit.Record(ctx, actorID, "user_delete", "user", tokens.Subject(id), h.meta(c))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

func (h *AuthHTTP) UserActivity(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	entries, err := h.Audit.List(c.Request().Context(), id, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

func userID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return uint(id), nil
}
