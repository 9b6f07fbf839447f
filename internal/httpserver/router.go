package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/wanderatlas/tourism_admin/internal/middleware/auth"
	"github.com/wanderatlas/tourism_admin/internal/middleware/ratelimit"
	"github.com/wanderatlas/tourism_admin/internal/permission"
)

type Deps struct {
	AuthHandler *AuthHTTP
	AuthMW      *authmw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	// Credential-bearing endpoints get a tight per-IP budget.
	loginLimiter := ratelimit.New(1, 5)

	auth := e.Group("/auth")
	auth.POST("/login", d.AuthHandler.Login, loginLimiter.Middleware)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/forgot-password", d.AuthHandler.ForgotPassword, loginLimiter.Middleware)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)

	private := auth.Group("")
	private.Use(d.AuthMW.RequireAuth)
	private.POST("/logout", d.AuthHandler.Logout)
	private.GET("/me", d.AuthHandler.Me)
	private.PUT("/profile", d.AuthHandler.UpdateProfile)
	private.POST("/change-password", d.AuthHandler.ChangePassword)

	users := private.Group("/users")
	users.GET("", d.AuthHandler.ListUsers, d.AuthMW.RequirePermission(permission.CapUsers, permission.ActionView))
	users.GET("/:id", d.AuthHandler.GetUser, d.AuthMW.RequirePermission(permission.CapUsers, permission.ActionView))
	users.GET("/:id/activity", d.AuthHandler.UserActivity, d.AuthMW.RequirePermission(permission.CapUsers, permission.ActionView))
	users.POST("", d.AuthHandler.CreateUser, d.AuthMW.RequirePermission(permission.CapUsers, permission.ActionManage))
	users.PUT("/:id", d.AuthHandler.UpdateUser, d.AuthMW.RequirePermission(permission.CapUsers, permission.ActionManage))
	users.DELETE("/:id", d.AuthHandler.DeleteUser, d.AuthMW.RequirePermission(permission.CapUsers, permission.ActionManage))
}
