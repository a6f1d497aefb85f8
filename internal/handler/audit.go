package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/middleware"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/service"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

type auditQuery struct {
	Wallet string `form:"wallet"`
	Limit  int    `form:"limit"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// List returns the caller's own audit trail, newest first. Clients never see
// each other's entries.
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	records, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "failed to list audit logs", err))
		return
	}
	c.JSON(http.StatusOK, records)
}

func auditFilterFromQuery(c *gin.Context) (service.AuditFilter, error) {
	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return service.AuditFilter{}, fmt.Errorf("invalid query: %w", err)
	}
	filter := service.AuditFilter{
		ClientID: middleware.ClientID(c),
		Wallet:   q.Wallet,
		Limit:    q.Limit,
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultAuditLimit
	case filter.Limit > maxAuditLimit:
		filter.Limit = maxAuditLimit
	}

	var err error
	if filter.From, err = optionalTime("from", q.From); err != nil {
		return filter, err
	}
	if filter.To, err = optionalTime("to", q.To); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, fmt.Errorf("to is before from")
	}
	return filter, nil
}

// optionalTime accepts RFC3339 or unix seconds.
func optionalTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("%s: want RFC3339 or unix seconds, got %q", name, raw)
}
