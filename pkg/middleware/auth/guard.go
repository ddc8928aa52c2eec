package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxClaims = "claims"

	HeaderTokenStatus = "X-Token-Status"
	HeaderUserID      = "X-User-ID"
	HeaderUserRole    = "X-User-Role"
)

// Guard validates bearer access tokens locally with the shared signing
// secret; no call back to the auth service. Revocation visibility comes from
// the Redis lookaside when one is configured, otherwise revoked tokens are
// only rejected once they expire.
type Guard struct {
	Codec       *tokens.Codec
	Revocations *revocation.Cache
}

func NewGuard(codec *tokens.Codec, cache *revocation.Cache) *Guard {
	return &Guard{Codec: codec, Revocations: cache}
}

func BearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := BearerToken(c)
		if raw == "" {
			return reject(c, http.StatusUnauthorized, "invalid", "auth_required", "bearer access token required")
		}

		claims, err := g.Codec.ParseAccess(raw)
		if err != nil {
			if errors.Is(err, tokens.ErrExpired) {
				return reject(c, http.StatusUnauthorized, "expired", "expired", "access token expired, use the refresh flow")
			}
			return reject(c, http.StatusUnauthorized, "invalid", "invalid_token", "invalid access token")
		}
		if claims.Subject == "" {
			return reject(c, http.StatusUnauthorized, "invalid", "invalid_token", "token has no subject")
		}

		reason, revoked, err := g.Revocations.Lookup(c.Request().Context(), claims.ID)
		if err != nil {
			return reject(c, http.StatusServiceUnavailable, "invalid", "store_unavailable", "revocation store unavailable")
		}
		if revoked {
			return reject(c, http.StatusUnauthorized, "invalid", "revoked", "token revoked: "+reason)
		}

		c.Response().Header().Set(HeaderTokenStatus, "valid")
		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxClaims, claims)

		// Downstream services trust these headers instead of re-parsing.
		c.Request().Header.Set(HeaderUserID, claims.Subject)
		c.Request().Header.Set(HeaderUserRole, claims.Role)

		return next(c)
	}
}

func RequireRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return reject(c, http.StatusUnauthorized, "invalid", "auth_required", "invalid or missing role")
			}
			if !slices.Contains(required, role) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":  "forbidden",
					"detail": "you don't have enough rights for this resource",
				})
			}
			return next(c)
		}
	}
}

func reject(c echo.Context, status int, tokenStatus, code, detail string) error {
	c.Response().Header().Set(HeaderTokenStatus, tokenStatus)
	return c.JSON(status, echo.Map{"error": code, "detail": detail})
}
