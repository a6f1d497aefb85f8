package repository

import (
	"context"
	"encoding/json"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/service"
)

// RedisAuditRepo keeps the newest listMax entries in a capped list. Used when
// Redis is configured but Postgres is not.
type RedisAuditRepo struct {
	client  *RedisClient
	listKey string
	listMax int64
}

func NewRedisAuditRepo(client *RedisClient, listMax int) *RedisAuditRepo {
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditRepo{
		client:  client,
		listKey: client.Key("audit_logs"),
		listMax: int64(listMax),
	}
}

func (r *RedisAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := r.client.Client.Pipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, r.listMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisAuditRepo) List(ctx context.Context, filter service.AuditFilter) ([]*model.AuditLog, error) {
	limit := clampAuditLimit(filter.Limit)
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, r.fetchSize(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	return filterAuditItems(items, filter, limit), nil
}

// fetchSize over-reads so filtered listings still fill the page.
func (r *RedisAuditRepo) fetchSize(limit int) int64 {
	fetch := int64(limit) * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	return fetch
}

func filterAuditItems(items []string, filter service.AuditFilter, limit int) []*model.AuditLog {
	results := make([]*model.AuditLog, 0, limit)
	for _, raw := range items {
		var entry model.AuditLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if !filter.Matches(&entry) {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
