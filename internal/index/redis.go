package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIndex implements Index using Redis string keys with expiry.
type RedisIndex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisIndex connects to redisURL and creates a Redis-backed index.
func NewRedisIndex(ctx context.Context, redisURL string, ttl time.Duration) (*RedisIndex, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisIndexWithClient(client, ttl), nil
}

// NewRedisIndexWithClient creates an index from an existing Redis client.
func NewRedisIndexWithClient(client *redis.Client, ttl time.Duration) *RedisIndex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisIndex{
		client: client,
		prefix: "folder:",
		ttl:    ttl,
	}
}

func (r *RedisIndex) key(parentID, name string) string {
	return r.prefix + entryKey(parentID, name)
}

func (r *RedisIndex) Get(ctx context.Context, parentID, name string) (string, bool, error) {
	id, err := r.client.Get(ctx, r.key(parentID, name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup folder index: %w", err)
	}
	return id, true, nil
}

func (r *RedisIndex) Set(ctx context.Context, parentID, name, folderID string) error {
	if err := r.client.Set(ctx, r.key(parentID, name), folderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("save folder index: %w", err)
	}
	return nil
}

func (r *RedisIndex) Delete(ctx context.Context, parentID, name string) error {
	if err := r.client.Del(ctx, r.key(parentID, name)).Err(); err != nil {
		return fmt.Errorf("delete folder index: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}
