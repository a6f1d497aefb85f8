package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tigertrust/lendgate/internal/config"
)

type RedisClient struct {
	Client *redis.Client
	prefix string
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb, prefix: cfg.Redis.KeyPrefix}, nil
}

// Key joins parts under the configured prefix, e.g. lendgate:applications:<wallet>.
func (r *RedisClient) Key(parts ...string) string {
	return joinKey(r.prefix, parts...)
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

func joinKey(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, ":"); p != "" {
		all = append(all, p)
	}
	all = append(all, parts...)
	return strings.Join(all, ":")
}
