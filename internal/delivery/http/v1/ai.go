package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/server/internal/realtime"
	"github.com/taskforge/server/internal/services"
)

type summarizeRequest struct {
	ProjectID string `json:"projectId" binding:"required,uuid"`
}

func (h *handlerImpl) HandleSummarize(c *gin.Context) {
	var req summarizeRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if !h.ensureMember(c, req.ProjectID) {
		return
	}

	text, err := h.ai.Summarize(c, req.ProjectID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to summarize project")
		if errors.Is(err, services.ErrProjectNotFound) {
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
			return
		}
		// The generator's own message comes back to the caller: quota
		// and upstream failures must not be swallowed.
		abort(c, newBadGatewayError(err.Error()))
		return
	}

	h.broadcast.Publish(req.ProjectID, realtime.EventSummaryReady, gin.H{
		"projectId": req.ProjectID,
		"text":      text,
	})

	c.JSON(http.StatusOK, gin.H{"error": false, "text": text})
}

type askRequest struct {
	ProjectID string `json:"projectId" binding:"required,uuid"`
	Question  string `json:"question" binding:"required,min=3"`
	TaskID    string `json:"taskId" binding:"omitempty,uuid"`
}

func (h *handlerImpl) HandleAsk(c *gin.Context) {
	var req askRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if !h.ensureMember(c, req.ProjectID) {
		return
	}

	text, err := h.ai.Ask(c, req.ProjectID, req.TaskID, req.Question)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to answer question")
		if errors.Is(err, services.ErrProjectNotFound) {
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
			return
		}
		abort(c, newBadGatewayError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"error": false, "text": text})
}
