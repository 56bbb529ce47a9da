package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler upgrades HTTP requests into realtime sessions.
type Handler struct {
	logger     zerolog.Logger
	hub        *Hub
	verify     TokenVerifier
	membership MembershipChecker

	authTimeout   time.Duration
	sendBufferLen int
	upgrader      websocket.Upgrader
}

func NewHandler(
	logger zerolog.Logger,
	hub *Hub,
	verify TokenVerifier,
	membership MembershipChecker,
	authTimeout time.Duration,
	sendBufferLen int,
) *Handler {
	return &Handler{
		logger:        logger,
		hub:           hub,
		verify:        verify,
		membership:    membership,
		authTimeout:   authTimeout,
		sendBufferLen: sendBufferLen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; the
			// socket is useless until it authenticates, so origin
			// checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("websocket upgrade failed")
		return
	}

	session := newSession(h.logger, h.hub, conn, h.verify, h.membership, h.sendBufferLen)
	session.run(h.authTimeout)
}
