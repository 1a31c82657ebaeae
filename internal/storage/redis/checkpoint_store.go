// Package redis provides a Redis-backed checkpoint backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
)

// Config holds connection settings for the Redis checkpoint backend.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Close() error
}

// CheckpointStore keeps the checkpoint document under one key. SET replaces
// the value as a whole.
type CheckpointStore struct {
	client client
	key    string
	ttl    time.Duration
}

// NewCheckpointStore dials Redis and verifies the connection.
func NewCheckpointStore(ctx context.Context, cfg Config) (*CheckpointStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("checkpoint.redis.addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewCheckpointStoreWithClient(rdb, cfg.Key, cfg.TTL)
}

// NewCheckpointStoreWithClient wraps an existing client (primarily for testing).
func NewCheckpointStoreWithClient(c client, key string, ttl time.Duration) (*CheckpointStore, error) {
	if c == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = "trendcrawl:checkpoint"
	}
	return &CheckpointStore{client: c, key: key, ttl: ttl}, nil
}

// Get implements checkpoint.Backend.
func (s *CheckpointStore) Get(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

// Put implements checkpoint.Backend.
func (s *CheckpointStore) Put(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client connection.
func (s *CheckpointStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
