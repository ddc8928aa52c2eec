package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/salumedx/platform/pkg/logging"
	authmw "github.com/salumedx/platform/pkg/middleware/auth"
	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/middleware"
	"github.com/salumedx/platform/services/auth/internal/models"
	"github.com/salumedx/platform/services/auth/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`

	LicenseNumber  string `json:"license_number"`
	Institution    string `json:"institution"`
	OfficeLocation string `json:"office_location"`

	BirthDate  string `json:"birth_date"`
	NationalID string `json:"national_id"`
	Address    string `json:"address"`
}

func (r *registerRequest) toInput() service.RegisterInput {
	return service.RegisterInput{
		Email:          r.Email,
		Username:       r.Username,
		Password:       r.Password,
		Password2:      r.Password2,
		Role:           models.Role(r.Role),
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Phone:          r.Phone,
		LicenseNumber:  r.LicenseNumber,
		Institution:    r.Institution,
		OfficeLocation: r.OfficeLocation,
		BirthDate:      r.BirthDate,
		NationalID:     r.NationalID,
		Address:        r.Address,
	}
}

func clientMeta(c echo.Context) service.ClientMeta {
	return service.ClientMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func tokensJSON(pair *service.TokenPair) echo.Map {
	return echo.Map{
		"access":             pair.Access,
		"refresh":            pair.Refresh,
		"access_expires_at":  pair.AccessExpiresAt,
		"refresh_expires_at": pair.RefreshExpiresAt,
	}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return fail(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
	}

	user, pair, err := h.Svc.Register(ctx, req.toInput(), clientMeta(c))
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered",
		"user":    user,
		"tokens":  tokensJSON(pair),
	})
}

func (h *AuthHTTP) RegisterPatient(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
	}

	user, err := h.Svc.RegisterPatient(ctx, req.toInput())
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "patient registered",
		"user":    user,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return fail(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
	}

	user, pair, err := h.Svc.Login(ctx, req.Email, req.Password, clientMeta(c))
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"user":    user,
		"tokens":  tokensJSON(pair),
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
	}

	access, expiresAt, err := h.Svc.Refresh(ctx, req.Refresh)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access":            access,
		"access_expires_at": expiresAt,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
	}

	if err := h.Svc.Logout(ctx, req.Refresh); err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	user := middleware.Principal(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "auth_required", "authentication required")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) Sessions(c echo.Context) error {
	user := middleware.Principal(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "auth_required", "authentication required")
	}

	sessions, err := h.Svc.Sessions(c.Request().Context(), user.ID)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// TokenStatus inspects the presented token without requiring it to be valid,
// so clients can time their refresh calls. Advisory only.
func (h *AuthHTTP) TokenStatus(c echo.Context) error {
	raw := authmw.BearerToken(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"authenticated": false,
			"error":         "auth_required",
			"detail":        "no bearer token provided",
		})
	}

	claims, err := h.Svc.Codec.DecodeAccess(raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"authenticated": false,
			"error":         "invalid_token",
			"detail":        "token cannot be decoded",
		})
	}

	now := time.Now().UTC()
	exp := claims.ExpiresAt.Time
	if !exp.After(now) {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"authenticated":   false,
			"expired":         true,
			"user_id":         claims.Subject,
			"expiration_time": exp,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"authenticated":     true,
		"user_id":           claims.Subject,
		"role":              claims.Role,
		"expiration_time":   exp,
		"remaining_seconds": int(exp.Sub(now).Seconds()),
	})
}

func authError(c echo.Context, err error) error {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "validation_error",
			"detail": "one or more fields are invalid",
			"fields": vErr.Fields,
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, service.ErrAccountInactive):
		return fail(c, http.StatusForbidden, "account_inactive", "account has been deactivated")
	case errors.Is(err, service.ErrConflict):
		return fail(c, http.StatusConflict, "conflict", "a user with this email or username already exists")
	case errors.Is(err, tokens.ErrExpired):
		return fail(c, http.StatusUnauthorized, "expired", "token expired")
	case errors.Is(err, tokens.ErrBadSignature), errors.Is(err, tokens.ErrMalformed):
		return fail(c, http.StatusUnauthorized, "invalid_token", "token is malformed or has a bad signature")
	case errors.Is(err, revocation.ErrRevoked):
		return fail(c, http.StatusUnauthorized, "revoked", err.Error())
	case errors.Is(err, service.ErrUnknownSession):
		return fail(c, http.StatusUnauthorized, "unknown_session", "no live session for this refresh token")
	case errors.Is(err, service.ErrUnknownSubject):
		return fail(c, http.StatusUnauthorized, "unknown_subject", "token subject no longer exists")
	case errors.Is(err, service.ErrStoreUnavailable):
		return fail(c, http.StatusServiceUnavailable, "store_unavailable", "token stores unavailable, retry later")
	default:
		logging.FromContext(c.Request().Context()).Error("unexpected_error", "error", err)
		return fail(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func fail(c echo.Context, status int, code, detail string) error {
	return c.JSON(status, echo.Map{"error": code, "detail": detail})
}
