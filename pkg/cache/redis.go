package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache wraps a redis client with a key prefix so multiple services
// can share one instance without collisions.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type RedisOption func(*RedisCache)

func WithPrefix(prefix string) RedisOption {
	return func(r *RedisCache) { r.prefix = prefix }
}

func NewRedisCache(addr, password string, db int, opts ...RedisOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	r := &RedisCache{client: client, prefix: "daytrade"}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *RedisCache) wrapKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisCache) wrapKeys(keys []string) []string {
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = r.wrapKey(key)
	}
	return wrapped
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %q: %w", key, err)
	}
	return r.client.Set(ctx, r.wrapKey(key), data, expiration).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, r.wrapKeys(keys)...).Err()
}

func (r *RedisCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.wrapKeys(keys)...).Result()
	if err != nil {
		return false, err
	}
	return n == int64(len(keys)), nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
