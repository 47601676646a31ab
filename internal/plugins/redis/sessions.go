package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type revokerClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTokenRevoker keeps revoked token ids as keys that expire with the token.
type RedisTokenRevoker struct {
	rdb revokerClient
}

func NewRedisTokenRevoker(rdb revokerClient) *RedisTokenRevoker {
	return &RedisTokenRevoker{rdb: rdb}
}

func (r *RedisTokenRevoker) key(tokenID string) string {
	return "revoked:" + tokenID
}

func (r *RedisTokenRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.key(tokenID), 1, ttl).Err()
}

func (r *RedisTokenRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
