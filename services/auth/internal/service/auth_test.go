package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/models"
	"github.com/salumedx/platform/services/auth/internal/repo"
)

func newTestService(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.PhysicianProfile{},
		&models.PatientProfile{},
		&models.RefreshToken{},
		&models.RevokedToken{},
	))

	svc := &AuthService{
		Repo: &repo.GormRepo{DB: db},
		Codec: &tokens.Codec{
			AccessSecret:  []byte("test-access-secret"),
			RefreshSecret: []byte("test-refresh-secret"),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
		},
		MaxSessions: 3,
	}
	return svc, db
}

func patientInput(email, username string) RegisterInput {
	return RegisterInput{
		Email:      email,
		Username:   username,
		Password:   "secret-password",
		Password2:  "secret-password",
		Role:       models.RolePatient,
		FirstName:  "Ana",
		LastName:   "Rossi",
		NationalID: "ID-" + username,
		BirthDate:  "1990-04-12",
	}
}

func TestRegisterIssuesTokens(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, patientInput("ana@example.com", "ana"), ClientMeta{IP: "10.0.0.1", UserAgent: "test-agent"})
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, pair)

	claims, err := svc.Codec.ParseAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, string(models.RolePatient), claims.Role)

	refreshClaims, err := svc.Codec.ParseRefresh(pair.Refresh)
	require.NoError(t, err)

	var row models.RefreshToken
	require.NoError(t, db.Where("jti = ?", refreshClaims.ID).First(&row).Error)
	assert.Equal(t, user.ID, row.UserID)
	assert.Equal(t, "10.0.0.1", row.IPAddress)
	assert.Equal(t, "test-agent", row.UserAgent)

	var profile models.PatientProfile
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, "ID-ana", profile.NationalID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	in := RegisterInput{
		Email:     "not-an-email",
		Password:  "short",
		Password2: "different",
		Role:      models.Role("admin"),
	}
	_, _, err := svc.Register(context.Background(), in, ClientMeta{})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")
	assert.Contains(t, vErr.Fields, "username")
	assert.Contains(t, vErr.Fields, "password")
	assert.Contains(t, vErr.Fields, "password2")
	assert.Contains(t, vErr.Fields, "role")
}

func TestRegisterPhysicianRequiresLicense(t *testing.T) {
	svc, _ := newTestService(t)

	in := RegisterInput{
		Email:     "doc@example.com",
		Username:  "doc",
		Password:  "secret-password",
		Password2: "secret-password",
		Role:      models.RolePhysician,
	}
	_, _, err := svc.Register(context.Background(), in, ClientMeta{})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "license_number")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, patientInput("dup@example.com", "first"), ClientMeta{})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, patientInput("dup@example.com", "second"), ClientMeta{})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterPatientIssuesNoTokens(t *testing.T) {
	svc, db := newTestService(t)

	user, err := svc.RegisterPatient(context.Background(), patientInput("walkin@example.com", "walkin"))
	require.NoError(t, err)
	assert.Equal(t, models.RolePatient, user.Role)

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, patientInput("ana@example.com", "ana"), ClientMeta{})
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "Ana@Example.com", "secret-password", ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, patientInput("ana@example.com", "ana"), ClientMeta{})
	require.NoError(t, err)

	_, _, wrongPass := svc.Login(ctx, "ana@example.com", "not-the-password", ClientMeta{})
	_, _, unknown := svc.Login(ctx, "ghost@example.com", "whatever-password", ClientMeta{})

	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, patientInput("ana@example.com", "ana"), ClientMeta{})
	require.NoError(t, err)
	require.NoError(t, svc.Repo.SetUserActive(ctx, user.ID, false))

	_, _, err = svc.Login(ctx, "ana@example.com", "secret-password", ClientMeta{})
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestSessionCapEvictsOldest(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, patientInput("ana@example.com", "ana"), ClientMeta{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err := svc.Login(ctx, "ana@example.com", "secret-password", ClientMeta{})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, svc.MaxSessions, count)

	sessions, err := svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, svc.MaxSessions)
}
