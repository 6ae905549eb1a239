package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps verification codes in Redis with per-key TTL, so pending
// codes survive server restarts and are shared across replicas.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(email string) string {
	return fmt.Sprintf("verify:%s", email)
}

// Put stores code for email with the given TTL, replacing any pending code.
func (s *RedisStore) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, codeKey(email), code, ttl).Err()
}

// Consume checks code against the pending entry for email and removes it on match.
func (s *RedisStore) Consume(ctx context.Context, email, code string) error {
	key := codeKey(email)
	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCodeNotFound
		}
		return err
	}
	if stored != code {
		return ErrCodeMismatch
	}
	return s.client.Del(ctx, key).Err()
}
