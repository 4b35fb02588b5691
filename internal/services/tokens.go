package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore tracks revoked JWT ids so logout takes effect before the token
// expires on its own.
type TokenStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisTokenStore keeps revoked jtis in Redis with a TTL matching the
// remaining token lifetime, so entries clean themselves up.
type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(addr string) *RedisTokenStore {
	return &RedisTokenStore{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired
	}
	return s.rdb.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revocationKey(jti string) string {
	return "revoked:" + jti
}
