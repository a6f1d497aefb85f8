package model

import (
	"time"
)

// AuditLog is one captured request/response pair.
type AuditLog struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	Wallet    string `json:"wallet,omitempty"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	// Bodies are redacted before they are stored.
	RequestBody  string `json:"request_body"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Handlers add decision details here (reason code, tier, decision id).
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
