package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRevoked is surfaced by validators when a token's jti is blacklisted.
var ErrRevoked = errors.New("token revoked")

// Cache is a Redis lookaside over the durable revocation store. The issuer
// writes an entry on every revocation with a TTL equal to the token's
// remaining lifetime, so consumer services can reject revoked tokens without
// holding a database connection. A nil *Cache is valid and reports nothing
// revoked.
type Cache struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *Cache) Mark(ctx context.Context, jti, reason string, expiresAt time.Time) error {
	if c == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Expiry already rejects the token everywhere.
		return nil
	}
	return c.rdb.Set(ctx, key(jti), reason, ttl).Err()
}

// Lookup reports whether jti is blacklisted and with what reason.
func (c *Cache) Lookup(ctx context.Context, jti string) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	reason, err := c.rdb.Get(ctx, key(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return reason, true, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func key(jti string) string { return "revoked:" + jti }
