package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
	"github.com/tigertrust/lendgate/internal/stream"
)

type StreamHandler struct {
	hub *stream.Hub
}

func NewStreamHandler(hub *stream.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Scores upgrades to a websocket. ?wallet= narrows the feed to one wallet.
func (h *StreamHandler) Scores(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet != "" {
		normalized, err := model.NormalizeWallet(wallet)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		wallet = normalized
	}
	if err := h.hub.Serve(c.Writer, c.Request, wallet); err != nil {
		// Upgrade already wrote the HTTP error
		logger.Debug("score stream upgrade failed", "error", err)
	}
}
