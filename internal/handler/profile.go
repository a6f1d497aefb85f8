package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/model"
	"github.com/tigertrust/lendgate/internal/pkg/apperrors"
	"github.com/tigertrust/lendgate/internal/service"
)

type ProfileHandler struct {
	profiles service.ProfileStore
}

func NewProfileHandler(profiles service.ProfileStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	wallet, err := model.NormalizeWallet(c.Param("wallet"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	profile, err := h.profiles.FetchProfile(c.Request.Context(), wallet)
	if errors.Is(err, service.ErrProfileNotFound) {
		c.Error(apperrors.New(apperrors.ErrNotFound, "no borrower profile for wallet "+wallet, nil))
		return
	}
	if err != nil {
		c.Error(apperrors.NewUpstream(service.SourceProfile, err))
		return
	}
	c.JSON(http.StatusOK, profile)
}
