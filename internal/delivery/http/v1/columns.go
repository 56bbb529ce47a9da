package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskforge/server/internal/services"
)

func (h *handlerImpl) HandleGetColumns(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	if !h.ensureMember(c, id) {
		return
	}

	columns, err := h.columns.ListByProject(c, id)
	if err != nil {
		if errors.Is(err, services.ErrColumnNotFound) {
			abort(c, newNotFoundError("no columns found for this project"))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to list columns")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"error": false, "columns": columns})
}
