package handler

import (
	"net/http"

	"anoa.com/forumkarma/internal/entity"
	voteDto "anoa.com/forumkarma/internal/modules/vote/dto"
	vote "anoa.com/forumkarma/internal/modules/vote/service"
	"anoa.com/forumkarma/pkg/response"
	"anoa.com/forumkarma/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VoteHandler struct {
	service vote.VoteService
}

func NewVoteHandler(service vote.VoteService) *VoteHandler {
	return &VoteHandler{service: service}
}

func (h *VoteHandler) CastVote(c *gin.Context) {
	var req voteDto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	voterID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	result, err := h.service.Vote(c.Request.Context(), voterID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *VoteHandler) GetVoteStatus(c *gin.Context) {
	targetKind := c.Param("targetKind")
	if targetKind != entity.TargetPost && targetKind != entity.TargetComment {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target kind"})
		return
	}

	targetID, err := uuid.Parse(c.Param("targetID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	var voterIDPtr *uuid.UUID
	if voterID, err := response.GetUserID(c); err == nil {
		voterIDPtr = &voterID
	}

	resp, err := h.service.Status(c.Request.Context(), voterIDPtr, targetID, targetKind)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
