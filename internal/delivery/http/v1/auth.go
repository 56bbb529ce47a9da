package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/server/internal/models"
	"github.com/taskforge/server/internal/services"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=3,max=255"`
	Password string `json:"password" binding:"required,min=3,max=255"`
}

type userResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:   user.ID,
		Name: user.Name,
	}
}

func (h *handlerImpl) HandleRegister(c *gin.Context) {
	var req registerRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}
	h.logger.Info().
		Str("name", req.Name).
		Msg("register request")

	user, token, err := h.auth.Register(c, req.Name, req.Password)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to register user")
		switch {
		case errors.Is(err, services.ErrUserAlreadyExists):
			abort(c, newConflictError(services.ErrUserAlreadyExists.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"error":   false,
		"message": "registered",
		"user":    newUserResponse(user),
		"token":   token,
	})
}

type loginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handlerImpl) HandleLogin(c *gin.Context) {
	var req loginRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	user, token, err := h.auth.Login(c, req.Name, req.Password)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to login")
		switch {
		case errors.Is(err, services.ErrUserNotFound),
			errors.Is(err, services.ErrPasswordMismatch):
			// Same response for both so the endpoint does not leak
			// which names are registered.
			abort(c, newUnauthorizedError(services.ErrPasswordMismatch.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "logged in",
		"user":    newUserResponse(user),
		"token":   token,
	})
}

// HandleLogout acknowledges logout. Tokens are stateless, so there is
// nothing to revoke server-side; the client discards its copy.
func (h *handlerImpl) HandleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"error":   false,
		"message": "logged out, discard the token client-side",
	})
}
