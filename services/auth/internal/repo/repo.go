package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Store calls get a short deadline so a stuck database surfaces as a fast
// failure instead of hanging the request.
const storeTimeout = 3 * time.Second

type GormRepo struct {
	DB *gorm.DB
}

func storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, storeTimeout)
}
