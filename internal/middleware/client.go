package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderClientID   = "X-Client-ID"
	ContextClientKey = "client_id"
)

// ClientMiddleware tags the request with a caller identity for rate limiting,
// idempotency and audit. Lendgate has no authentication; the identity is the
// X-Client-ID header when present, else the remote IP.
func ClientMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderClientID))
		if id == "" || len(id) > 128 {
			id = c.ClientIP()
		}
		c.Set(ContextClientKey, id)
		c.Next()
	}
}

// ClientID returns the identity set by ClientMiddleware, or the remote IP.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(ContextClientKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return c.ClientIP()
}
