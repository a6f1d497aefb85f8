package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/messaging"
	"github.com/tigertrust/lendgate/internal/middleware"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
	"github.com/tigertrust/lendgate/internal/pkg/metrics"
	"github.com/tigertrust/lendgate/internal/service"
)

type LoanHandler struct {
	pipeline  *service.DecisionPipeline
	history   service.ApplicationHistory
	publisher messaging.DecisionPublisher
}

func NewLoanHandler(pipeline *service.DecisionPipeline, history service.ApplicationHistory, publisher messaging.DecisionPublisher) *LoanHandler {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &LoanHandler{pipeline: pipeline, history: history, publisher: publisher}
}

// Apply runs ApplyForLoan. Rejections are 200 with success=false, except
// malformed input which is 400.
func (h *LoanHandler) Apply(c *gin.Context) {
	// 1. Bind Request
	var req model.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid request body: " + err.Error()))
		return
	}

	// 2. Decide
	decision, err := h.pipeline.ApplyForLoan(c.Request.Context(), req.Application())
	if err != nil {
		middleware.AddAuditContext(c, "error", apperrors.Wrap(err).Message)
		c.Error(err)
		return
	}
	middleware.SetAuditWallet(c, decision.Wallet)
	middleware.AddAuditContext(c, "decision_id", decision.ID)

	if decision.Rejection != nil && decision.Rejection.Reason == model.ReasonInvalidInput {
		middleware.AddAuditContext(c, "reason_code", decision.Rejection.Reason)
		c.JSON(http.StatusBadRequest, decision)
		return
	}

	// 3. 记录申请次数 (velocity window)，决策已定，失败只告警
	if err := h.history.RecordApplication(c.Request.Context(), decision.Wallet, decision.DecidedAt); err != nil {
		metrics.UpstreamErrors.WithLabelValues(service.SourceHistory).Inc()
		logger.Warn("failed to record application", "wallet", decision.Wallet, "decision_id", decision.ID, "error", err)
	}

	// 4. Publish
	h.publisher.Publish(decision)

	if decision.Approved {
		middleware.AddAuditContext(c, "outcome", "approved")
		middleware.AddAuditContext(c, "approved_amount", decision.Terms.ApprovedAmount)
	} else {
		middleware.AddAuditContext(c, "outcome", "rejected")
		middleware.AddAuditContext(c, "reason_code", decision.Rejection.Reason)
	}
	c.JSON(http.StatusOK, decision)
}

func (h *LoanHandler) Eligibility(c *gin.Context) {
	report, err := h.pipeline.CheckEligibility(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		c.Error(err)
		return
	}
	middleware.SetAuditWallet(c, report.Wallet)
	middleware.AddAuditContext(c, "is_eligible", report.IsEligible)
	c.JSON(http.StatusOK, report)
}

type tiersResponse struct {
	Version        string           `json:"version"`
	Tiers          []model.LoanTier `json:"tiers"`
	RepaymentTerms map[string]int   `json:"repayment_terms"`
}

func (h *LoanHandler) ListTiers(c *gin.Context) {
	table := h.pipeline.Tiers()
	c.JSON(http.StatusOK, tiersResponse{
		Version:        table.Version(),
		Tiers:          table.Tiers(),
		RepaymentTerms: h.pipeline.Terms(),
	})
}
