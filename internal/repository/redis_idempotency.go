package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tigertrust/lendgate/internal/middleware"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
)

// RedisIdempotencyStore shares idempotency records across instances.
type RedisIdempotencyStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *RedisClient, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

type idemWire struct {
	Status     int       `json:"status"`
	Body       []byte    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	Processing bool      `json:"processing"`
}

func (s *RedisIdempotencyStore) key(k string) string {
	return s.client.Key("idem", k)
}

// Begin fails open: if Redis is unreachable the request proceeds unlocked.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (*middleware.IdempotencyRecord, bool) {
	payload, _ := encodeIdemRecord(middleware.IdempotencyRecord{CreatedAt: time.Now().UTC(), Processing: true})

	ok, err := s.client.Client.SetNX(ctx, s.key(key), payload, s.ttl).Result()
	if err != nil {
		logger.Warn("idempotency lock failed", "error", err)
		return nil, false
	}
	if ok {
		return nil, false
	}

	raw, err := s.client.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	rec, err := decodeIdemRecord(raw)
	if err != nil {
		return nil, false
	}
	return rec, true
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, status int, body []byte) {
	payload, err := encodeIdemRecord(middleware.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.client.Client.Set(ctx, s.key(key), payload, s.ttl).Err(); err != nil {
		logger.Warn("idempotency save failed", "error", err)
	}
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) {
	_ = s.client.Client.Del(ctx, s.key(key)).Err()
}

func encodeIdemRecord(rec middleware.IdempotencyRecord) ([]byte, error) {
	return json.Marshal(idemWire{
		Status:     rec.Status,
		Body:       rec.Body,
		CreatedAt:  rec.CreatedAt,
		Processing: rec.Processing,
	})
}

func decodeIdemRecord(raw []byte) (*middleware.IdempotencyRecord, error) {
	var wire idemWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return &middleware.IdempotencyRecord{
		Status:     wire.Status,
		Body:       wire.Body,
		CreatedAt:  wire.CreatedAt,
		Processing: wire.Processing,
	}, nil
}
