package middleware

import (
	"log/slog"

	echo "github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	authmw "github.com/salumedx/platform/pkg/middleware/auth"
	loggingmw "github.com/salumedx/platform/pkg/middleware/logging"
)

func Common(logger *slog.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		ecM.Secure(),
		loggingmw.RequestLogger(logger),
	}
}

// StripIdentity drops client-supplied identity headers from every inbound
// request. Only the token guard may set them, after validation; without this
// an unauthenticated caller could smuggle a forged identity through the
// public routes to an upstream that trusts these headers.
func StripIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Request().Header.Del(authmw.HeaderUserID)
			c.Request().Header.Del(authmw.HeaderUserRole)
			return next(c)
		}
	}
}
