package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/salumedx/platform/pkg/hash"
	"github.com/salumedx/platform/pkg/logging"
	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/events"
	"github.com/salumedx/platform/services/auth/internal/models"
	"github.com/salumedx/platform/services/auth/internal/repo"
)

const DefaultMaxSessions = 5

type AuthService struct {
	Repo        *repo.GormRepo
	Codec       *tokens.Codec
	Revocations *revocation.Cache
	Events      *events.Producer

	// MaxSessions caps refresh rows per user; oldest rows are evicted on
	// issuance. Zero disables the cap.
	MaxSessions int
}

// ClientMeta is captured at issuance for audit and anomaly review.
type ClientMeta struct {
	IP        string
	UserAgent string
}

type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	Password2 string
	Role      models.Role
	FirstName string
	LastName  string
	Phone     string

	// physician fields
	LicenseNumber  string
	Institution    string
	OfficeLocation string

	// patient fields
	BirthDate  string
	NationalID string
	Address    string
}

func (in *RegisterInput) validate() error {
	fields := map[string]string{}

	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		fields["email"] = "a valid email is required"
	}
	if strings.TrimSpace(in.Username) == "" {
		fields["username"] = "username is required"
	}
	if len(in.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if in.Password != in.Password2 {
		fields["password2"] = "passwords do not match"
	}
	if !in.Role.Valid() {
		fields["role"] = "role must be one of patient, physician, pharmacist, staff"
	}

	switch in.Role {
	case models.RolePhysician:
		if strings.TrimSpace(in.LicenseNumber) == "" {
			fields["license_number"] = "license number is required for physicians"
		}
	case models.RolePatient:
		if strings.TrimSpace(in.NationalID) == "" {
			fields["national_id"] = "national id is required for patients"
		}
		if in.BirthDate != "" {
			if _, err := time.Parse("2006-01-02", in.BirthDate); err != nil {
				fields["birth_date"] = "birth date must be YYYY-MM-DD"
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in *RegisterInput) toUser() (*models.User, error) {
	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: pwHash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Active:       true,
	}

	switch in.Role {
	case models.RolePhysician:
		user.Physician = &models.PhysicianProfile{
			LicenseNumber:  in.LicenseNumber,
			Institution:    in.Institution,
			OfficeLocation: in.OfficeLocation,
		}
	case models.RolePatient:
		user.Patient = &models.PatientProfile{
			BirthDate:  in.BirthDate,
			NationalID: in.NationalID,
			Address:    in.Address,
			Phone:      in.Phone,
		}
	}

	return user, nil
}

// Register creates the principal and immediately issues a token pair, so a
// fresh registration is also a logged-in session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta ClientMeta) (*models.User, *TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	user, err := in.toUser()
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash password", "error", err)
		return nil, nil, err
	}

	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			return nil, nil, ErrConflict
		}
		l.Error("register_failed", "error", err)
		return nil, nil, storeErr(err)
	}

	pair, err := s.issue(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{
		Type:   events.TypeUserRegistered,
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   string(user.Role),
	})
	l.Info("user_registered", "user_id", user.ID, "role", user.Role)

	return user, pair, nil
}

// RegisterPatient lets pharmacy staff create a patient account without
// issuing tokens for it.
func (s *AuthService) RegisterPatient(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Role = models.RolePatient

	if err := in.validate(); err != nil {
		return nil, err
	}

	user, err := in.toUser()
	if err != nil {
		return nil, err
	}

	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			return nil, ErrConflict
		}
		return nil, storeErr(err)
	}

	s.publish(ctx, events.Event{
		Type:   events.TypeUserRegistered,
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   string(user.Role),
	})

	return user, nil
}

// verifyCredentials resolves an identifier+secret to a live principal.
// Unknown email and wrong password return the same error so responses cannot
// be used to enumerate accounts; an inactive account is reported distinctly.
func (s *AuthService) verifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*models.User, *TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		l.Warn("login_failed", "error", err)
		return nil, nil, err
	}

	pair, err := s.issue(ctx, user, meta)
	if err != nil {
		l.Error("login_failed", "error", err)
		return nil, nil, err
	}

	s.publish(ctx, events.Event{
		Type:   events.TypeUserLogin,
		UserID: user.ID.String(),
		Role:   string(user.Role),
	})
	l.Info("login_successful", "user_id", user.ID)

	return user, pair, nil
}

// issue mints the access/refresh pair and persists the refresh session row.
// Access tokens are never stored server-side.
func (s *AuthService) issue(ctx context.Context, user *models.User, meta ClientMeta) (*TokenPair, error) {
	access, accessClaims, err := s.Codec.MintAccess(user.ID.String(), string(user.Role))
	if err != nil {
		return nil, err
	}

	refresh, refreshClaims, err := s.Codec.MintRefresh(user.ID.String(), string(user.Role))
	if err != nil {
		return nil, err
	}

	row := &models.RefreshToken{
		UserID:    user.ID,
		JTI:       refreshClaims.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		IPAddress: meta.IP,
		UserAgent: truncate(meta.UserAgent, 500),
	}
	if err := s.Repo.CreateRefresh(ctx, row); err != nil {
		return nil, storeErr(err)
	}

	if err := s.Repo.TrimSessions(ctx, user.ID, s.MaxSessions); err != nil {
		logging.FromContext(ctx).Warn("session_trim_failed", "user_id", user.ID, "error", err)
	}

	return &TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, ev events.Event) {
	if err := s.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
