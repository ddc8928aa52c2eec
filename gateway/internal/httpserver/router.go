package httpserver

import (
	"net/http"

	echo "github.com/labstack/echo/v4"

	"github.com/salumedx/platform/gateway/internal/config"
	gwmw "github.com/salumedx/platform/gateway/internal/middleware"
	authmw "github.com/salumedx/platform/pkg/middleware/auth"
)

// Register mounts the upstream proxies under /api/v1. Auth and catalog reads
// are public; everything else requires a locally validated access token.
func Register(e *echo.Echo, cfg *config.Config, guard *authmw.Guard) error {
	const prefix = "/api/v1"

	e.Pre(gwmw.StripIdentity())

	authProxy, err := newProxy(cfg.AuthURL, prefix)
	if err != nil {
		return err
	}
	catalogProxy, err := newProxy(cfg.CatalogURL, prefix)
	if err != nil {
		return err
	}
	prescriptionsProxy, err := newProxy(cfg.PrescriptionsURL, prefix)
	if err != nil {
		return err
	}
	pharmaciesProxy, err := newProxy(cfg.PharmaciesURL, prefix)
	if err != nil {
		return err
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group(prefix)

	api.Any("/auth", authProxy)
	api.Any("/auth/*", authProxy)

	// Product browsing is open; catalog writes are restricted below.
	api.GET("/catalog/*", catalogProxy)

	writeRole := authmw.RequireRole("pharmacist", "staff")
	catalogWrites := api.Group("/catalog", guard.RequireAuth, writeRole)
	catalogWrites.POST("/*", catalogProxy)
	catalogWrites.PUT("/*", catalogProxy)
	catalogWrites.PATCH("/*", catalogProxy)
	catalogWrites.DELETE("/*", catalogProxy)

	clinicalRole := authmw.RequireRole("physician", "pharmacist")
	prescriptions := api.Group("/prescriptions", guard.RequireAuth, clinicalRole)
	prescriptions.Any("", prescriptionsProxy)
	prescriptions.Any("/*", prescriptionsProxy)

	pharmacies := api.Group("/pharmacies", guard.RequireAuth)
	pharmacies.Any("", pharmaciesProxy)
	pharmacies.Any("/*", pharmaciesProxy)

	return nil
}
