package repository

import (
	"context"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/service"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type auditRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	ClientID     string `gorm:"size:128;index:idx_audit_logs_client,priority:1"`
	Wallet       string `gorm:"size:64;index"`
	Method       string `gorm:"size:8"`
	Path         string
	IP           string `gorm:"size:64"`
	UserAgent    string
	RequestBody  string
	StatusCode   int
	ResponseBody string
	LatencyMs    int64
	Context      map[string]interface{} `gorm:"serializer:json;type:jsonb"`
	CreatedAt    time.Time              `gorm:"index:idx_audit_logs_client,priority:2,sort:desc"`
}

func (auditRow) TableName() string { return "audit_logs" }

func auditRowFrom(entry *model.AuditLog) auditRow {
	return auditRow{
		ID:           entry.ID,
		ClientID:     entry.ClientID,
		Wallet:       entry.Wallet,
		Method:       entry.Method,
		Path:         entry.Path,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		RequestBody:  entry.RequestBody,
		StatusCode:   entry.StatusCode,
		ResponseBody: entry.ResponseBody,
		LatencyMs:    entry.LatencyMs,
		Context:      entry.Context,
		CreatedAt:    entry.CreatedAt,
	}
}

func (r auditRow) toModel() *model.AuditLog {
	ctx := r.Context
	if ctx == nil {
		ctx = map[string]interface{}{}
	}
	return &model.AuditLog{
		ID:           r.ID,
		ClientID:     r.ClientID,
		Wallet:       r.Wallet,
		Method:       r.Method,
		Path:         r.Path,
		IP:           r.IP,
		UserAgent:    r.UserAgent,
		RequestBody:  r.RequestBody,
		StatusCode:   r.StatusCode,
		ResponseBody: r.ResponseBody,
		LatencyMs:    r.LatencyMs,
		Context:      ctx,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type PostgresAuditRepo struct {
	db *gorm.DB
}

func NewPostgresAuditRepo(db *gorm.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	row := auditRowFrom(entry)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *PostgresAuditRepo) List(ctx context.Context, filter service.AuditFilter) ([]*model.AuditLog, error) {
	limit := clampAuditLimit(filter.Limit)

	q := r.db.WithContext(ctx).Model(&auditRow{})
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if filter.Wallet != "" {
		q = q.Where("wallet = ?", filter.Wallet)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var rows []auditRow
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]*model.AuditLog, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// Cleanup drops entries older than the retention window.
func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&auditRow{}).Error
}

func clampAuditLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
