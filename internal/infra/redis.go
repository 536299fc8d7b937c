package infra

import (
	"context"
	"fmt"
	"time"

	"order_engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the redis:// URL and verifies it with PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, &domain.ConfigError{Field: "queue.redis_url", Err: err}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
