package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/models"
)

// expiredCodec shares the service secrets but mints already-expired tokens.
func expiredCodec(c *tokens.Codec) *tokens.Codec {
	return &tokens.Codec{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     -time.Minute,
		RefreshTTL:    -time.Minute,
	}
}

func registeredUser(t *testing.T, svc *AuthService) (*models.User, *TokenPair) {
	t.Helper()
	user, pair, err := svc.Register(context.Background(), patientInput("ana@example.com", "ana"), ClientMeta{})
	require.NoError(t, err)
	return user, pair
}

func TestValidateAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	user, pair := registeredUser(t, svc)

	got, claims, err := svc.Validate(context.Background(), pair.Access, tokens.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, tokens.TypeAccess, claims.TokenType)
}

func TestValidateRejectsWrongTokenType(t *testing.T) {
	svc, _ := newTestService(t)
	_, pair := registeredUser(t, svc)

	_, _, err := svc.Validate(context.Background(), pair.Access, tokens.TypeRefresh)
	assert.Error(t, err)
}

func TestValidateRevokedReportsReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, pair := registeredUser(t, svc)

	claims, err := svc.Codec.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, claims, models.ReasonSecurity))

	_, _, err = svc.Validate(ctx, pair.Refresh, tokens.TypeRefresh)
	require.ErrorIs(t, err, revocation.ErrRevoked)
	assert.Contains(t, err.Error(), string(models.ReasonSecurity))
}

// An expired token that was also revoked must report expiry: the signature and
// lifetime checks run before any store lookup.
func TestValidateExpiredBeatsRevoked(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user, _ := registeredUser(t, svc)

	raw, claims, err := expiredCodec(svc.Codec).MintAccess(user.ID.String(), string(user.Role))
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.RevokedToken{
		JTI:       claims.ID,
		TokenType: tokens.TypeAccess,
		UserID:    &user.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		Reason:    models.ReasonSecurity,
	}).Error)

	_, _, err = svc.Validate(ctx, raw, tokens.TypeAccess)
	assert.ErrorIs(t, err, tokens.ErrExpired)
}

func TestValidateDeactivatedSubject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, pair := registeredUser(t, svc)

	require.NoError(t, svc.Repo.SetUserActive(ctx, user.ID, false))

	_, _, err := svc.Validate(ctx, pair.Access, tokens.TypeAccess)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestValidateDeletedSubject(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user, pair := registeredUser(t, svc)

	require.NoError(t, db.Delete(&models.User{}, "id = ?", user.ID).Error)

	_, _, err := svc.Validate(ctx, pair.Access, tokens.TypeAccess)
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestRefreshMintsNewAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, pair := registeredUser(t, svc)

	access, expiresAt, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	oldClaims, err := svc.Codec.ParseAccess(pair.Access)
	require.NoError(t, err)
	newClaims, err := svc.Codec.ParseAccess(access)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), newClaims.Subject)
	assert.NotEqual(t, oldClaims.ID, newClaims.ID)

	// Refresh tokens do not rotate: the original stays usable.
	_, _, err = svc.Refresh(ctx, pair.Refresh)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, pair := registeredUser(t, svc)

	_, _, err := svc.Refresh(context.Background(), pair.Access)
	assert.Error(t, err)
}

func TestRefreshUnknownSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, pair := registeredUser(t, svc)

	claims, err := svc.Codec.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	require.NoError(t, svc.Repo.DeleteRefreshByJTI(ctx, claims.ID))

	_, _, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestLogoutBlocksRefresh(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	_, pair := registeredUser(t, svc)

	require.NoError(t, svc.Logout(ctx, pair.Refresh))

	_, _, err := svc.Refresh(ctx, pair.Refresh)
	require.ErrorIs(t, err, revocation.ErrRevoked)
	assert.Contains(t, err.Error(), string(models.ReasonLogout))

	claims, err := svc.Codec.DecodeRefresh(pair.Refresh)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("jti = ?", claims.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	_, pair := registeredUser(t, svc)

	require.NoError(t, svc.Logout(ctx, pair.Refresh))
	require.NoError(t, svc.Logout(ctx, pair.Refresh))

	claims, err := svc.Codec.DecodeRefresh(pair.Refresh)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLogoutAcceptsExpiredRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, _ := registeredUser(t, svc)

	raw, _, err := expiredCodec(svc.Codec).MintRefresh(user.ID.String(), string(user.Role))
	require.NoError(t, err)

	assert.NoError(t, svc.Logout(ctx, raw))
}

// A missing refresh token is a malformed request, not a successful logout.
func TestLogoutRejectsEmptyToken(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.Logout(context.Background(), ""), tokens.ErrMalformed)
}
