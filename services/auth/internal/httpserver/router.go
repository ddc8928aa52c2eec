package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/salumedx/platform/services/auth/internal/middleware"
	"github.com/salumedx/platform/services/auth/internal/models"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Guard       *middleware.TokenGuard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/auth/register", d.AuthHandler.Register)
	e.POST("/auth/login", d.AuthHandler.Login)
	e.POST("/auth/refresh", d.AuthHandler.Refresh)
	e.GET("/auth/token-status", d.AuthHandler.TokenStatus)

	private := e.Group("/auth")
	private.Use(d.Guard.RequireAuth)

	private.POST("/logout", d.AuthHandler.Logout)
	private.GET("/me", d.AuthHandler.Me)
	private.GET("/sessions", d.AuthHandler.Sessions)
	private.POST("/register-patient", d.AuthHandler.RegisterPatient,
		middleware.RequireRole(models.RolePharmacist, models.RoleStaff))
}
