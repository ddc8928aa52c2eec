package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/salumedx/platform/services/auth/internal/models"
)

var ErrUserAlreadyExists = errors.New("user already exists")

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	u.Email = strings.ToLower(u.Email)

	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", u.Email, u.Username).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExists
	}

	// Concurrent registrations can race past the pre-check; the unique
	// index catches the loser and must report the same error.
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	var user models.User
	err := r.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("active", active).Error
}
