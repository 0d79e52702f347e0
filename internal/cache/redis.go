// Package cache provides the response cache stores used by gin-cache
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const opTimeout = 2 * time.Second

// RedisStore implements persist.CacheStore on top of go-redis v9
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Set(key string, value any, expire time.Duration) error {
	payload, err := persist.Serialize(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.client.Set(ctx, s.key(key), payload, expire).Err()
}

func (s *RedisStore) Get(key string, value any) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return persist.ErrCacheMiss
	}
	if err != nil {
		return err
	}

	return persist.Deserialize(payload, value)
}

func (s *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.client.Del(ctx, s.key(key)).Err()
}

// NewStore returns a Redis backed store when redis.url is set and an
// in-memory one otherwise
func NewStore(ctx context.Context) (persist.CacheStore, error) {
	url := viper.GetString("redis.url")
	if url == "" {
		zap.L().Debug("No redis.url set, caching responses in memory")
		return persist.NewMemoryStore(time.Minute), nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url, %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis, %w", err)
	}

	zap.L().Debug("Caching responses in redis", zap.String("addr", opts.Addr))

	return NewRedisStore(client, "storefront:cache:"), nil
}
