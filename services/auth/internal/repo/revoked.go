package repo

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/salumedx/platform/services/auth/internal/models"
)

// InsertRevoked is idempotent on jti: a concurrent duplicate logout hits the
// unique constraint and is treated as success.
func (r *GormRepo) InsertRevoked(ctx context.Context, t *models.RevokedToken) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "jti"}},
			DoNothing: true,
		}).
		Create(t).Error
}

func (r *GormRepo) FindRevoked(ctx context.Context, jti string) (*models.RevokedToken, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	var row models.RevokedToken
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// PurgeExpiredRevoked drops blacklist rows whose tokens have passed their own
// expiry. Maintenance only: the expiry check rejects those tokens regardless.
func (r *GormRepo) PurgeExpiredRevoked(ctx context.Context) (int64, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}
