package handler

import (
	"net/http"

	karma "anoa.com/forumkarma/internal/modules/karma/service"
	"anoa.com/forumkarma/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type KarmaHandler struct {
	service karma.KarmaService
}

func NewKarmaHandler(service karma.KarmaService) *KarmaHandler {
	return &KarmaHandler{service: service}
}

func (h *KarmaHandler) GetKarma(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	snapshot, err := h.service.GetKarma(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *KarmaHandler) Recalculate(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	actorID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	snapshot, err := h.service.Recompute(c.Request.Context(), actorID, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
