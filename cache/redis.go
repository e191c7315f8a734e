package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore scopes invalidation with a version counter per namespace:
// every key embeds the namespace version, so bumping the counter orphans all
// keys in that namespace at once without scanning. Orphans age out via TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) versionKey(namespace string) string {
	return "cache:" + namespace + ":version"
}

func (s *RedisStore) entryKey(ctx context.Context, namespace, key string) string {
	version, err := s.client.Get(ctx, s.versionKey(namespace)).Int64()
	if err != nil {
		version = 0
	}
	return fmt.Sprintf("cache:%s:v%d:%s", namespace, version, key)
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	value, err := s.client.Get(ctx, s.entryKey(ctx, namespace, key)).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

func (s *RedisStore) Set(ctx context.Context, namespace, key string, value []byte) {
	s.client.Set(ctx, s.entryKey(ctx, namespace, key), value, s.ttl)
}

func (s *RedisStore) Invalidate(ctx context.Context, namespace string) {
	s.client.Incr(ctx, s.versionKey(namespace))
}
