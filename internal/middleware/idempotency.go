package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// IdempotencyRecord is a finished response, or a marker that the first
// request with the key is still running.
type IdempotencyRecord struct {
	Status     int
	Body       []byte
	CreatedAt  time.Time
	Processing bool
}

// IdempotencyStore holds responses per scoped key. Begin returns the existing
// record and true, or claims the key for the caller and returns false.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (*IdempotencyRecord, bool)
	Complete(ctx context.Context, key string, status int, body []byte)
	Release(ctx context.Context, key string)
}

// InMemIdempotencyStore is the single-instance store used without Redis.
type InMemIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*IdempotencyRecord
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemIdempotencyStore(ttl time.Duration) *InMemIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemIdempotencyStore{
		records: make(map[string]*IdempotencyRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *InMemIdempotencyStore) Begin(_ context.Context, key string) (*IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if rec, ok := s.records[key]; ok {
		copied := *rec
		return &copied, true
	}
	s.records[key] = &IdempotencyRecord{Processing: true, CreatedAt: now}
	return nil, false
}

func (s *InMemIdempotencyStore) Complete(_ context.Context, key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = &IdempotencyRecord{
		Status:    status,
		Body:      append([]byte(nil), body...),
		CreatedAt: s.now(),
	}
}

func (s *InMemIdempotencyStore) Release(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// sweep drops expired records; caller holds mu.
func (s *InMemIdempotencyStore) sweep(now time.Time) {
	for k, rec := range s.records {
		if now.Sub(rec.CreatedAt) >= s.ttl {
			delete(s.records, k)
		}
	}
}

// IdempotencyMiddleware replays the stored response for a repeated
// X-Idempotency-Key. Keys are scoped by client, method and route.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}
		if len(idemKey) > maxIdempotencyKeyLen {
			c.Error(apperrors.NewInvalidRequest("X-Idempotency-Key is longer than 128 characters"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		key := ClientID(c) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + idemKey

		if rec, hit := store.Begin(ctx, key); hit {
			if rec.Processing {
				c.Error(apperrors.New(apperrors.ErrConflict, "request with this idempotency key is in progress", nil))
				c.Abort()
				return
			}
			c.Header(HeaderReplayed, "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			c.Abort()
			return
		}

		capture := &responseCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		// 出错 (c.Error) 或 5xx 时释放，允许客户端重试；
		// 业务拒绝是确定结果，重放时不再计入申请次数
		status := c.Writer.Status()
		if len(c.Errors) > 0 || status >= 500 {
			store.Release(ctx, key)
			return
		}
		store.Complete(ctx, key, status, capture.body)
	}
}

// responseCapture tees the response body. A positive limit caps what is kept.
type responseCapture struct {
	gin.ResponseWriter
	body  []byte
	limit int
}

func (w *responseCapture) Write(b []byte) (int, error) {
	keep := b
	if w.limit > 0 {
		if room := w.limit - len(w.body); room < len(keep) {
			if room < 0 {
				room = 0
			}
			keep = keep[:room]
		}
	}
	w.body = append(w.body, keep...)
	return w.ResponseWriter.Write(b)
}

func (w *responseCapture) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
