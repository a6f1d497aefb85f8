package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
)

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	ClientID string
	Wallet   string
	From     *time.Time
	To       *time.Time
	Limit    int
}

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, error)
}

// AuditService persists captured requests on one background goroutine: to
// audit-YYYY-MM-DD.jsonl files under dir, keyed by each entry's UTC date, and
// to repo when one is configured. A ring buffer keeps the latest entries for
// listing without a database.
type AuditService struct {
	dir     string
	queue   chan *model.AuditLog
	recent  *auditBuffer
	repo    AuditRepo
	stopped chan struct{}

	day  string
	file *os.File
	enc  *json.Encoder
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}
	svc := &AuditService{
		dir:     logDir,
		queue:   make(chan *model.AuditLog, 1000),
		recent:  newAuditBuffer(1000),
		repo:    repo,
		stopped: make(chan struct{}),
	}
	go svc.run()
	return svc, nil
}

// Log never blocks the request path; entries are dropped when the queue is full.
func (s *AuditService) Log(entry *model.AuditLog) {
	if entry == nil {
		return
	}
	s.recent.Add(entry)
	select {
	case s.queue <- entry:
	default:
		logger.Warn("audit queue full, dropping entry", "id", entry.ID, "path", entry.Path)
	}
}

// List prefers the database and falls back to the in-memory ring buffer.
func (s *AuditService) List(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, error) {
	if s.repo == nil {
		return s.recent.List(filter), nil
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		logger.LogError(ctx, err, "audit repo list failed, serving from memory")
		return s.recent.List(filter), nil
	}
	return records, nil
}

func (s *AuditService) run() {
	defer close(s.stopped)
	defer s.closeFile()
	for entry := range s.queue {
		s.persist(entry)
	}
}

func (s *AuditService) persist(entry *model.AuditLog) {
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.repo.Insert(ctx, entry)
		cancel()
		if err != nil {
			logger.Error("audit db insert failed", "id", entry.ID, "error", err)
		}
	}
	enc, err := s.encoderFor(entry.CreatedAt)
	if err != nil {
		logger.Error("audit file unavailable", "dir", s.dir, "error", err)
		return
	}
	if err := enc.Encode(entry); err != nil {
		logger.Error("audit file write failed", "id", entry.ID, "error", err)
	}
}

// encoderFor switches files when the entry falls on a new UTC day.
func (s *AuditService) encoderFor(at time.Time) (*json.Encoder, error) {
	if at.IsZero() {
		at = time.Now()
	}
	day := at.UTC().Format("2006-01-02")
	if s.file != nil && day == s.day {
		return s.enc, nil
	}
	s.closeFile()

	f, err := os.OpenFile(filepath.Join(s.dir, "audit-"+day+".jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	s.day, s.file, s.enc = day, f, json.NewEncoder(f)
	return s.enc, nil
}

func (s *AuditService) closeFile() {
	if s.file != nil {
		_ = s.file.Close()
		s.file, s.enc = nil, nil
	}
}

// Close drains queued entries and waits for the writer to finish.
func (s *AuditService) Close() {
	close(s.queue)
	<-s.stopped
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List walks newest first.
func (b *auditBuffer) List(filter AuditFilter) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil || !filter.Matches(entry) {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}

// Matches reports whether entry passes every set field.
func (f AuditFilter) Matches(entry *model.AuditLog) bool {
	if f.ClientID != "" && entry.ClientID != f.ClientID {
		return false
	}
	if f.Wallet != "" && entry.Wallet != f.Wallet {
		return false
	}
	if f.From != nil && entry.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && entry.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
