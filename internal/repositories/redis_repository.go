package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository tracks refresh-token sessions and the revoked token ids.
type RedisRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRepository(rdb *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisRepository) StoreSession(ctx context.Context, jti string, userId string) error {
	key := "session:" + jti
	return r.rdb.Set(ctx, key, userId, r.ttl).Err()
}

func (r *RedisRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	key := "blacklist:" + jti
	exists, err := r.rdb.Exists(ctx, key).Result()
	return exists == 1, err
}

func (r *RedisRepository) Blacklist(ctx context.Context, jti string) error {
	key := "blacklist:" + jti
	return r.rdb.Set(ctx, key, "true", r.ttl).Err()
}

func (r *RedisRepository) DeleteSession(ctx context.Context, jti string) error {
	key := "session:" + jti
	return r.rdb.Del(ctx, key).Err()
}
