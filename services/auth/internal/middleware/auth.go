package middleware

import (
	"errors"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	authmw "github.com/salumedx/platform/pkg/middleware/auth"
	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/models"
	"github.com/salumedx/platform/services/auth/internal/service"
)

const ctxPrincipal = "principal"

// TokenGuard protects the auth service's own endpoints with the full
// validator: signature, expiry, blacklist and principal liveness, unlike the
// consumer-side guard which validates statelessly.
type TokenGuard struct {
	Svc *service.AuthService
}

func NewTokenGuard(svc *service.AuthService) *TokenGuard {
	return &TokenGuard{Svc: svc}
}

func (g *TokenGuard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := authmw.BearerToken(c)
		if raw == "" {
			return reject(c, http.StatusUnauthorized, "invalid", "auth_required", "bearer access token required")
		}

		user, claims, err := g.Svc.Validate(c.Request().Context(), raw, tokens.TypeAccess)
		if err != nil {
			return rejectValidation(c, err)
		}

		c.Response().Header().Set(authmw.HeaderTokenStatus, "valid")
		c.Set(ctxPrincipal, user)
		c.Set(authmw.CtxUserID, claims.Subject)
		c.Set(authmw.CtxRole, claims.Role)

		return next(c)
	}
}

func rejectValidation(c echo.Context, err error) error {
	switch {
	case errors.Is(err, tokens.ErrExpired):
		return reject(c, http.StatusUnauthorized, "expired", "expired", "access token expired, use the refresh flow")
	case errors.Is(err, revocation.ErrRevoked):
		return reject(c, http.StatusUnauthorized, "invalid", "revoked", err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		return reject(c, http.StatusForbidden, "invalid", "account_inactive", "account has been deactivated")
	case errors.Is(err, service.ErrUnknownSubject):
		return reject(c, http.StatusUnauthorized, "invalid", "unknown_subject", "token subject no longer exists")
	case errors.Is(err, service.ErrStoreUnavailable):
		return reject(c, http.StatusServiceUnavailable, "invalid", "store_unavailable", "token stores unavailable, retry later")
	default:
		return reject(c, http.StatusUnauthorized, "invalid", "invalid_token", "invalid access token")
	}
}

func RequireRole(required ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := Principal(c)
			if user == nil {
				return reject(c, http.StatusUnauthorized, "invalid", "auth_required", "authentication required")
			}
			if !slices.Contains(required, user.Role) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":  "forbidden",
					"detail": "you don't have enough rights for this resource",
				})
			}
			return next(c)
		}
	}
}

// Principal returns the validated user set by RequireAuth, or nil.
func Principal(c echo.Context) *models.User {
	user, _ := c.Get(ctxPrincipal).(*models.User)
	return user
}

func reject(c echo.Context, status int, tokenStatus, code, detail string) error {
	c.Response().Header().Set(authmw.HeaderTokenStatus, tokenStatus)
	return c.JSON(status, echo.Map{"error": code, "detail": detail})
}
