package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salumedx/platform/services/auth/internal/models"
)

func (r *GormRepo) CreateRefresh(ctx context.Context, t *models.RefreshToken) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) FindRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormRepo) DeleteRefreshByJTI(ctx context.Context, jti string) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	return r.DB.WithContext(ctx).Where("jti = ?", jti).Delete(&models.RefreshToken{}).Error
}

// ListRefreshByUser returns the caller's live sessions, newest first.
func (r *GormRepo) ListRefreshByUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	var sessions []models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, time.Now().UTC()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// TrimSessions deletes the oldest refresh rows beyond keep, so one account
// cannot accumulate sessions without bound.
func (r *GormRepo) TrimSessions(ctx context.Context, userID uuid.UUID, keep int) error {
	if keep <= 0 {
		return nil
	}
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	var rows []models.RefreshToken
	err := r.DB.WithContext(ctx).
		Select("id").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return err
	}
	if len(rows) <= keep {
		return nil
	}

	stale := make([]uuid.UUID, 0, len(rows)-keep)
	for _, row := range rows[keep:] {
		stale = append(stale, row.ID)
	}
	return r.DB.WithContext(ctx).Where("id IN ?", stale).Delete(&models.RefreshToken{}).Error
}

func (r *GormRepo) DeleteExpiredRefresh(ctx context.Context) (int64, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
