package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDCtxKey   = "user_id"
	userNameCtxKey = "user_name"
)

func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		h.logger.Error().Msg("authorization header required")
		abort(c, newUnauthorizedError("authorization header required"))
		return
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		h.logger.Error().Msg("invalid authorization header")
		abort(c, newUnauthorizedError("invalid authorization header"))
		return
	}

	identity, err := h.auth.VerifyToken(parts[1])
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to verify token")
		abort(c, newUnauthorizedError("invalid or expired token"))
		return
	}

	c.Set(userIDCtxKey, identity.UserID)
	c.Set(userNameCtxKey, identity.Name)
	c.Next()
}

func getStringFromContext(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// requireUser returns the authenticated user id or aborts with 401.
func (h *handlerImpl) requireUser(c *gin.Context) (string, bool) {
	userID, ok := getStringFromContext(c, userIDCtxKey)
	if !ok || userID == "" {
		h.logger.Error().Msg("no user id found in context")
		abort(c, newStatusTextError(http.StatusUnauthorized))
		return "", false
	}
	return userID, true
}

// ensureMember aborts with 403 unless the requesting user belongs to
// the project. Membership is re-read on every call.
func (h *handlerImpl) ensureMember(c *gin.Context, projectID string) bool {
	userID, ok := h.requireUser(c)
	if !ok {
		return false
	}

	member, err := h.membership.IsMember(c, projectID, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to check membership")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return false
	}
	if !member {
		abort(c, newForbiddenError("forbidden: not a project member"))
		return false
	}
	return true
}

// ensureOwner aborts with 403 unless the requesting user is the
// project's designated owner.
func (h *handlerImpl) ensureOwner(c *gin.Context, projectID string) bool {
	userID, ok := h.requireUser(c)
	if !ok {
		return false
	}

	owner, err := h.membership.IsOwner(c, projectID, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to check ownership")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return false
	}
	if !owner {
		abort(c, newForbiddenError("forbidden: owner only"))
		return false
	}
	return true
}
