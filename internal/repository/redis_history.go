package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tigertrust/lendgate/internal/model"
)

const (
	applicationWindow = 24 * time.Hour
	// key outlives the window so a quiet wallet's set still expires
	applicationKeyTTL = 25 * time.Hour
)

// RedisApplicationHistory keeps one sorted set per wallet, scored by the
// application time in milliseconds.
type RedisApplicationHistory struct {
	client *RedisClient
	now    func() time.Time
}

func NewRedisApplicationHistory(client *RedisClient) *RedisApplicationHistory {
	return &RedisApplicationHistory{client: client, now: time.Now}
}

func (h *RedisApplicationHistory) key(wallet string) string {
	return h.client.Key("applications", model.WalletKey(wallet))
}

func (h *RedisApplicationHistory) RecordApplication(ctx context.Context, wallet string, at time.Time) error {
	key := h.key(wallet)
	pipe := h.client.Client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: applicationMember(at)})
	pipe.ZRemRangeByScore(ctx, key, "-inf", expiredMax(at))
	pipe.Expire(ctx, key, applicationKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (h *RedisApplicationHistory) FetchApplicationCount24h(ctx context.Context, wallet string) (int, error) {
	n, err := h.client.Client.ZCount(ctx, h.key(wallet), liveMin(h.now()), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// The window is (now-24h, now]: an application exactly 24h old no longer
// counts, matching the in-memory history.
func windowStart(now time.Time) string {
	return strconv.FormatInt(now.Add(-applicationWindow).UnixMilli(), 10)
}

// liveMin is the ZCOUNT min bound, exclusive of windowStart.
func liveMin(now time.Time) string { return "(" + windowStart(now) }

// expiredMax is the ZREMRANGEBYSCORE max bound, inclusive of windowStart.
func expiredMax(now time.Time) string { return windowStart(now) }

// Members must be unique or two applications in the same millisecond collapse.
func applicationMember(at time.Time) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + ":" + uuid.NewString()[:8]
}
