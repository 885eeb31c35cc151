package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter stores memory documents as plain redis keys. No TTL is set;
// retention is the engine's job, not the store's.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(ctx context.Context, redisURL string) (*RedisAdapter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &RedisAdapter{client: client}, nil
}

func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	doc, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %q: %w", key, err)
	}
	return doc, true, nil
}

func (a *RedisAdapter) Put(ctx context.Context, key string, doc []byte) error {
	if err := a.client.Set(ctx, key, doc, 0).Err(); err != nil {
		return fmt.Errorf("put document %q: %w", key, err)
	}
	return nil
}

func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}

func (a *RedisAdapter) Close() error {
	return a.client.Close()
}
