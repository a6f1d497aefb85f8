package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/middleware"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/service"
)

type ScoreHandler struct {
	scoring *service.ScoringService
	recalc  *service.RecalcWorker
}

func NewScoreHandler(scoring *service.ScoringService, recalc *service.RecalcWorker) *ScoreHandler {
	return &ScoreHandler{scoring: scoring, recalc: recalc}
}

// Score runs ComputeScore on caller-supplied features.
func (h *ScoreHandler) Score(c *gin.Context) {
	var req model.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid request body: " + err.Error()))
		return
	}
	item := model.BatchScoreItem{}
	if req.Wallet != "" {
		wallet, err := model.NormalizeWallet(req.Wallet)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		item.Wallet = wallet
		middleware.SetAuditWallet(c, wallet)
	}
	result, err := h.scoring.Score(req.Features)
	if err != nil {
		c.Error(err)
		return
	}
	item.Result = result
	c.JSON(http.StatusOK, item)
}

func (h *ScoreHandler) Batch(c *gin.Context) {
	var req model.BatchScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid request body: " + err.Error()))
		return
	}
	items, err := h.scoring.ScoreBatch(req.Items)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "batch_size", len(items))
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// WalletScore aggregates chain and reputation features for the wallet.
func (h *ScoreHandler) WalletScore(c *gin.Context) {
	var req model.WalletScoreRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewInvalidRequest("invalid request body: " + err.Error()))
			return
		}
	}
	resp, err := h.scoring.ScoreWallet(c.Request.Context(), c.Param("wallet"), req.MonthlyIncome, req.Debt)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.SetAuditWallet(c, resp.Record.Wallet)
	middleware.AddAuditContext(c, "trust_score", resp.Score.Score)
	c.JSON(http.StatusOK, resp)
}

// Recalculate queues a recalculation; the result is pushed on the score stream.
func (h *ScoreHandler) Recalculate(c *gin.Context) {
	var req model.RecalcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid request body: " + err.Error()))
		return
	}
	ack, err := h.recalc.Enqueue(req)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.SetAuditWallet(c, ack.Wallet)
	middleware.AddAuditContext(c, "job_id", ack.JobID)
	c.JSON(http.StatusAccepted, ack)
}
