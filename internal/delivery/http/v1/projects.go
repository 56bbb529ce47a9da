package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskforge/server/internal/realtime"
	"github.com/taskforge/server/internal/services"
)

type projectRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=255"`
	Description string `json:"description" binding:"required,min=3"`
}

func (h *handlerImpl) HandleCreateProject(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req projectRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	project, err := h.projects.Create(c, userID, req.Name, req.Description)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create project")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	// Project lifecycle events are not room-scoped: everyone's project
	// list may need to refresh.
	h.broadcast.PublishAll(realtime.EventProjectCreated, gin.H{"project": project})

	h.logger.Info().
		Str("id", project.ID).
		Msg("created project")
	c.JSON(http.StatusCreated, gin.H{
		"error":     false,
		"message":   "project created",
		"projectId": project.ID,
		"project":   project,
	})
}

func (h *handlerImpl) HandleGetProjects(c *gin.Context) {
	if name := c.Query("name"); name != "" {
		projects, err := h.projects.SearchByName(c, name)
		if err != nil {
			h.logger.Error().
				Err(err).
				Msg("failed to search projects")
			abort(c, newStatusTextError(http.StatusInternalServerError))
			return
		}
		c.JSON(http.StatusOK, gin.H{"error": false, "projects": projects})
		return
	}

	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	projects, err := h.projects.ListForUser(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to list projects")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"error": false, "projects": projects})
}

func (h *handlerImpl) HandleGetProject(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	project, err := h.projects.GetByID(c, id)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to get project")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"error": false, "project": project})
}

func (h *handlerImpl) HandleUpdateProject(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	if !h.ensureMember(c, id) {
		return
	}

	var req projectRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	project, err := h.projects.Update(c, id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to update project")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.broadcast.PublishAll(realtime.EventProjectUpdated, gin.H{"project": project})

	h.logger.Info().
		Str("id", project.ID).
		Msg("updated project")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "project updated",
		"project": project,
	})
}

func (h *handlerImpl) HandleDeleteProject(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	if !h.ensureOwner(c, id) {
		return
	}

	err := h.projects.Delete(c, id)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			abort(c, newNotFoundError(services.ErrProjectNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to delete project")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.broadcast.PublishAll(realtime.EventProjectDeleted, gin.H{"projectId": id})

	h.logger.Info().
		Str("id", id).
		Msg("deleted project")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "project deleted",
	})
}
