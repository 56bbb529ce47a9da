package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskforge/server/internal/realtime"
	"github.com/taskforge/server/internal/services"
)

type createTaskRequest struct {
	ProjectID   string `json:"projectId" binding:"required,uuid"`
	ColumnID    string `json:"columnId" binding:"required,uuid"`
	Title       string `json:"title" binding:"required,min=3,max=255"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	var req createTaskRequest
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

	task, err := h.tasks.Create(c, services.CreateTaskParams{
		ProjectID:   req.ProjectID,
		ColumnID:    req.ColumnID,
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  req.Difficulty,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		switch {
		case errors.Is(err, services.ErrColumnNotFound):
			abort(c, newNotFoundError(services.ErrColumnNotFound.Error()))
		case errors.Is(err, services.ErrColumnMismatch):
			abort(c, newBadRequestError(services.ErrColumnMismatch.Error()))
		case errors.Is(err, services.ErrRankConflict):
			abort(c, newConflictError(services.ErrRankConflict.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.broadcast.Publish(task.ProjectID, realtime.EventTaskCreated, gin.H{"task": task})

	h.logger.Info().
		Str("id", task.ID).
		Msg("created task")
	c.JSON(http.StatusCreated, gin.H{
		"error":   false,
		"message": "task created",
		"task":    task,
	})
}

func (h *handlerImpl) HandleGetProjectTasks(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, newBadRequestError("invalid project id"))
		return
	}

	if !h.ensureMember(c, id) {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.tasks.ListByProject(c, services.ListTasksParams{
		ProjectID: id,
		ColumnID:  c.Query("columnId"),
		Search:    c.Query("search"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to list tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"error": false,
		"total": result.Total,
		"page":  result.Page,
		"limit": result.Limit,
		"tasks": result.Tasks,
	})
}

type updateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=3,max=255"`
	Description *string `json:"description"`
	Difficulty  *string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Order       *int64  `json:"order" binding:"omitempty,gte=0"`
	ColumnID    *string `json:"columnId" binding:"omitempty,uuid"`
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		abort(c, newBadRequestError("invalid task id"))
		return
	}

	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}
	if req.Title == nil && req.Description == nil && req.Difficulty == nil &&
		req.Order == nil && req.ColumnID == nil {
		abort(c, newBadRequestError("no fields to update"))
		return
	}

	current, err := h.tasks.GetByID(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to get task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	if !h.ensureMember(c, current.ProjectID) {
		return
	}

	task, err := h.tasks.Update(c, services.UpdateTaskParams{
		ID:          taskID,
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Order:       req.Order,
		ColumnID:    req.ColumnID,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to update task")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
		case errors.Is(err, services.ErrColumnNotFound):
			abort(c, newNotFoundError(services.ErrColumnNotFound.Error()))
		case errors.Is(err, services.ErrColumnMismatch):
			abort(c, newBadRequestError(services.ErrColumnMismatch.Error()))
		case errors.Is(err, services.ErrRankConflict):
			// Explicit reorder is never retried and never broadcast;
			// the client picks a non-colliding rank and tries again.
			abort(c, newConflictError(services.ErrRankConflict.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.broadcast.Publish(task.ProjectID, realtime.EventTaskUpdated, gin.H{"task": task})
	if req.Order != nil {
		h.broadcast.Publish(task.ProjectID, realtime.EventTaskReordered, gin.H{
			"taskId":   task.ID,
			"columnId": task.ColumnID,
			"order":    task.Order,
		})
	}

	h.logger.Info().
		Str("id", task.ID).
		Msg("updated task")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "task updated",
		"task":    task,
	})
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		abort(c, newBadRequestError("invalid task id"))
		return
	}

	current, err := h.tasks.GetByID(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to get task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	if !h.ensureMember(c, current.ProjectID) {
		return
	}

	task, err := h.tasks.Delete(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}
		h.logger.Error().
			Err(err).
			Msg("failed to delete task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.broadcast.Publish(task.ProjectID, realtime.EventTaskDeleted, gin.H{"taskId": task.ID})

	h.logger.Info().
		Str("id", task.ID).
		Msg("deleted task")
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "task deleted",
		"taskId":  task.ID,
	})
}
