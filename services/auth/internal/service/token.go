package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/salumedx/platform/pkg/logging"
	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/events"
	"github.com/salumedx/platform/services/auth/internal/models"
)

// Validate runs the full token state machine. Check order is part of the
// contract: signature, then expiry, then revocation, then subject. A token
// that is both expired and revoked reports Expired.
func (s *AuthService) Validate(ctx context.Context, raw, expectedType string) (*models.User, *tokens.Claims, error) {
	var (
		claims *tokens.Claims
		err    error
	)
	switch expectedType {
	case tokens.TypeRefresh:
		claims, err = s.Codec.ParseRefresh(raw)
	default:
		claims, err = s.Codec.ParseAccess(raw)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, nil, err
	}

	user, err := s.resolveSubject(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}

	return user, claims, nil
}

func (s *AuthService) checkRevoked(ctx context.Context, jti string) error {
	row, err := s.Repo.FindRevoked(ctx, jti)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return storeErr(err)
	}
	return fmt.Errorf("%w: %s", revocation.ErrRevoked, row.Reason)
}

// resolveSubject requires a live, active principal per request. Validation is
// deliberately not stateless: deactivation must bite before token expiry.
func (s *AuthService) resolveSubject(ctx context.Context, subject string) (*models.User, error) {
	uid, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrUnknownSubject
	}
	user, err := s.Repo.FindUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, storeErr(err)
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until its own expiry or logout.
func (s *AuthService) Refresh(ctx context.Context, raw string) (string, time.Time, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Codec.ParseRefresh(raw)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return "", time.Time{}, err
	}

	if _, err := s.Repo.FindRefreshByJTI(ctx, claims.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Row deleted by a prior logout even though the signed token
			// has not reached its expiry.
			return "", time.Time{}, ErrUnknownSession
		}
		return "", time.Time{}, storeErr(err)
	}

	user, err := s.resolveSubject(ctx, claims.Subject)
	if err != nil {
		return "", time.Time{}, err
	}

	access, accessClaims, err := s.Codec.MintAccess(user.ID.String(), string(user.Role))
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return "", time.Time{}, err
	}

	return access, accessClaims.ExpiresAt.Time, nil
}

// Logout blacklists the refresh token's jti and removes its session row.
// Idempotent: revoking an already-revoked jti is success. Outstanding access
// tokens stay valid until their own short expiry.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if raw == "" {
		return fmt.Errorf("%w: no refresh token presented", tokens.ErrMalformed)
	}

	claims, err := s.Codec.DecodeRefresh(raw)
	if err != nil {
		return err
	}

	var userID *uuid.UUID
	if uid, perr := uuid.Parse(claims.Subject); perr == nil {
		userID = &uid
	}

	row := &models.RevokedToken{
		JTI:       claims.ID,
		TokenType: tokens.TypeRefresh,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
		Reason:    models.ReasonLogout,
	}
	if err := s.Repo.InsertRevoked(ctx, row); err != nil {
		return storeErr(err)
	}

	if err := s.Repo.DeleteRefreshByJTI(ctx, claims.ID); err != nil {
		return storeErr(err)
	}

	if err := s.Revocations.Mark(ctx, claims.ID, string(models.ReasonLogout), claims.ExpiresAt.Time); err != nil {
		l.Warn("revocation_cache_mark_failed", "jti", claims.ID, "error", err)
	}

	s.publish(ctx, events.Event{
		Type:   events.TypeUserLogout,
		UserID: claims.Subject,
		JTI:    claims.ID,
		Reason: string(models.ReasonLogout),
	})
	l.Info("logout_successful", "jti", claims.ID)

	return nil
}

// Revoke blacklists an arbitrary token for a given reason, for security
// revocations that do not go through the logout flow.
func (s *AuthService) Revoke(ctx context.Context, claims *tokens.Claims, reason models.RevocationReason) error {
	var userID *uuid.UUID
	if uid, err := uuid.Parse(claims.Subject); err == nil {
		userID = &uid
	}

	row := &models.RevokedToken{
		JTI:       claims.ID,
		TokenType: claims.TokenType,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
		Reason:    reason,
	}
	if err := s.Repo.InsertRevoked(ctx, row); err != nil {
		return storeErr(err)
	}

	if claims.TokenType == tokens.TypeRefresh {
		if err := s.Repo.DeleteRefreshByJTI(ctx, claims.ID); err != nil {
			return storeErr(err)
		}
	}

	if err := s.Revocations.Mark(ctx, claims.ID, string(reason), claims.ExpiresAt.Time); err != nil {
		logging.FromContext(ctx).Warn("revocation_cache_mark_failed", "jti", claims.ID, "error", err)
	}

	s.publish(ctx, events.Event{
		Type:   events.TypeTokenRevoked,
		UserID: claims.Subject,
		JTI:    claims.ID,
		Reason: string(reason),
	})

	return nil
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	sessions, err := s.Repo.ListRefreshByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return sessions, nil
}
