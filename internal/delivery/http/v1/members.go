package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskforge/server/internal/services"
)

func (h *handlerImpl) HandleListMembers(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	if !h.ensureMember(c, id) {
		return
	}

	members, err := h.members.List(c, id)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to list members")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"error": false, "members": members})
}

type addMemberRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
	Role string `json:"role" binding:"omitempty,oneof=owner member"`
}

func (h *handlerImpl) HandleAddMember(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	if !h.ensureOwner(c, id) {
		return
	}

	var req addMemberRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	members, err := h.members.AddByName(c, id, req.Name, req.Role)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to add member")
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			abort(c, newNotFoundError(services.ErrUserNotFound.Error()))
		case errors.Is(err, services.ErrProjectNotFound):
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
		case errors.Is(err, services.ErrMemberExists):
			abort(c, newConflictError(services.ErrMemberExists.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.logger.Info().
		Str("project_id", id).
		Msg("added member")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "member added",
		"members": members,
	})
}

type updateMemberRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=owner member"`
}

func (h *handlerImpl) HandleUpdateMemberRole(c *gin.Context) {
	id := c.Param("id")
	memberID := c.Param("userId")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}
	if _, err := uuid.Parse(memberID); err != nil {
		abort(c, newBadRequestError("invalid user id"))
		return
	}

	if !h.ensureOwner(c, id) {
		return
	}

	var req updateMemberRoleRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	members, err := h.members.UpdateRole(c, id, memberID, req.Role)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to update member role")
		switch {
		case errors.Is(err, services.ErrMemberNotFound):
			abort(c, newNotFoundError(services.ErrMemberNotFound.Error()))
		case errors.Is(err, services.ErrProjectNotFound):
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.logger.Info().
		Str("project_id", id).
		Str("user_id", memberID).
		Str("role", req.Role).
		Msg("updated member role")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "role updated",
		"members": members,
	})
}

func (h *handlerImpl) HandleRemoveMember(c *gin.Context) {
	id := c.Param("id")
	memberID := c.Param("userId")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}
	if _, err := uuid.Parse(memberID); err != nil {
		abort(c, newBadRequestError("invalid user id"))
		return
	}

	if !h.ensureOwner(c, id) {
		return
	}

	members, err := h.members.Remove(c, id, memberID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to remove member")
		switch {
		case errors.Is(err, services.ErrOwnerRemoval):
			// The designated owner stays a member until ownership is
			// handed over through a role update.
			abort(c, newBadRequestError(services.ErrOwnerRemoval.Error()))
		case errors.Is(err, services.ErrProjectNotFound):
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
		case errors.Is(err, services.ErrMemberNotFound):
			abort(c, newNotFoundError(services.ErrMemberNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.logger.Info().
		Str("project_id", id).
		Str("user_id", memberID).
		Msg("removed member")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "member removed",
		"members": members,
	})
}
