package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoStore is returned when token revocation is requested without Redis.
var ErrNoStore = errors.New("token blacklist unavailable")

// TokenBlacklist stores revoked JWT IDs until the token would have expired anyway.
type TokenBlacklist struct {
	rdb *redis.Client
}

func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

// Revoke marks jti as revoked for ttl. A non-positive ttl is a no-op.
func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if b == nil || b.rdb == nil {
		return ErrNoStore
	}
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, BlacklistKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether jti was revoked. Without Redis nothing is revoked.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if b == nil || b.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, BlacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
