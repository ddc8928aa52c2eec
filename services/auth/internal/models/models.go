package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RolePatient    Role = "patient"
	RolePhysician  Role = "physician"
	RolePharmacist Role = "pharmacist"
	RoleStaff      Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RolePhysician, RolePharmacist, RoleStaff:
		return true
	}
	return false
}

type RevocationReason string

const (
	ReasonLogout         RevocationReason = "logout"
	ReasonPasswordChange RevocationReason = "password_change"
	ReasonSecurity       RevocationReason = "security"
	ReasonExpired        RevocationReason = "expired"
)

// User is never hard-deleted; deactivation flips Active so historical token
// and audit rows keep a valid owner.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"  json:"email"`
	Username     string    `gorm:"uniqueIndex;not null"  json:"username"`
	PasswordHash string    `gorm:"not null"              json:"-"`
	Role         Role      `gorm:"not null"              json:"role"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Physician *PhysicianProfile `gorm:"constraint:OnDelete:CASCADE" json:"physician,omitempty"`
	Patient   *PatientProfile   `gorm:"constraint:OnDelete:CASCADE" json:"patient,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type PhysicianProfile struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	LicenseNumber  string    `gorm:"not null"                   json:"license_number"`
	Institution    string    `json:"institution"`
	OfficeLocation string    `json:"office_location"`
}

func (p *PhysicianProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PatientProfile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	BirthDate  string    `json:"birth_date"`
	NationalID string    `gorm:"uniqueIndex"                json:"national_id"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"`
}

func (p *PatientProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RefreshToken is one live session. JTI duplicates the id claim inside the
// signed token so revocation and logout can look rows up without decoding.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"    json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	JTI       string    `gorm:"uniqueIndex;not null"    json:"jti"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null"                json:"expires_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `gorm:"size:500"                json:"user_agent"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// RevokedToken is the append-only blacklist. ExpiresAt keeps the original
// token expiry so stale rows can be pruned once they would be rejected by the
// expiry check anyway. UserID is nullable: system-initiated revocations have
// no subject.
type RevokedToken struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	JTI       string           `gorm:"uniqueIndex;not null" json:"jti"`
	TokenType string           `gorm:"not null"             json:"token_type"`
	UserID    *uuid.UUID       `gorm:"type:uuid;index"      json:"user_id,omitempty"`
	RevokedAt time.Time        `json:"revoked_at"`
	ExpiresAt time.Time        `gorm:"not null"             json:"expires_at"`
	Reason    RevocationReason `json:"reason"`
}

func (t *RevokedToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.RevokedAt.IsZero() {
		t.RevokedAt = time.Now().UTC()
	}
	return nil
}
