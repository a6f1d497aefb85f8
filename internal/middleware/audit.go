package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
	"github.com/tigertrust/lendgate/internal/service"
)

const (
	ContextAuditLog = "audit_log"
	HeaderRequestID = "X-Request-ID"

	maxAuditBody = 64 << 10
)

// AuditMiddleware records one AuditLog per request. An incoming X-Request-ID
// is reused when it looks sane, otherwise a fresh UUID is issued.
func AuditMiddleware(auditSvc *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := requestID(c.GetHeader(HeaderRequestID))
		c.Header(HeaderRequestID, reqID)

		reqLogger := logger.With("request_id", reqID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLogger))

		reqBody := peekRequestBody(c)
		entry := &model.AuditLog{
			ID:        reqID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: start.UTC(),
			Context:   make(map[string]interface{}),
		}
		c.Set(ContextAuditLog, entry)

		capture := &responseCapture{ResponseWriter: c.Writer, limit: maxAuditBody}
		c.Writer = capture
		c.Next()

		finishAuditEntry(c, entry, reqBody, capture.body, start)
		auditSvc.Log(entry)
	}
}

func requestID(incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming != "" && len(incoming) <= 64 && !strings.ContainsAny(incoming, " \t\r\n") {
		return incoming
	}
	return uuid.New().String()
}

// peekRequestBody reads the body and puts it back for binding. Only the first
// maxAuditBody bytes are kept for the log.
func peekRequestBody(c *gin.Context) []byte {
	if c.Request.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	if len(raw) > maxAuditBody {
		return raw[:maxAuditBody]
	}
	return raw
}

func finishAuditEntry(c *gin.Context, entry *model.AuditLog, reqBody, respBody []byte, start time.Time) {
	entry.ClientID = ClientID(c)
	if entry.Wallet == "" {
		entry.Wallet = c.Param("wallet")
	}
	entry.StatusCode = c.Writer.Status()
	entry.LatencyMs = time.Since(start).Milliseconds()
	entry.RequestBody = redactAuditBody(entry.Path, reqBody)
	entry.ResponseBody = redactAuditBody(entry.Path, respBody)
}

// AddAuditContext lets handlers attach decision details to the audit entry.
func AddAuditContext(c *gin.Context, key string, value interface{}) {
	if entry := auditEntry(c); entry != nil {
		entry.Context[key] = value
	}
}

// SetAuditWallet records which wallet the request concerned.
func SetAuditWallet(c *gin.Context, wallet string) {
	if entry := auditEntry(c); entry != nil {
		entry.Wallet = wallet
	}
}

func auditEntry(c *gin.Context) *model.AuditLog {
	val, ok := c.Get(ContextAuditLog)
	if !ok {
		return nil
	}
	entry, _ := val.(*model.AuditLog)
	return entry
}

func redactAuditBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !isSensitivePath(path) {
		return string(body)
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/profiles"):
		return true
	case strings.HasPrefix(path, "/v1/loans"):
		return true
	case strings.HasPrefix(path, "/v1/eligibility"):
		return true
	case strings.HasPrefix(path, "/v1/wallets"):
		return true
	case strings.HasPrefix(path, "/v1/score"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "verification_hash",
		"did",
		"monthly_income",
		"verified_income",
		"debt",
		"outstanding_debt",
		"private_key",
		"signature":
		return true
	default:
		return false
	}
}
