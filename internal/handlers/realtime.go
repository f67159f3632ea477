package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/realtime"
)

// RealtimeHandler upgrades /ws requests onto the hub.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Connect authenticates the handshake before upgrading so that a bad token
// gets a plain 401 instead of an open socket.
func (h *RealtimeHandler) Connect(c *gin.Context) {
	identity, err := h.hub.Authenticate(c.Request)
	if err != nil {
		apierrors.UnauthorizedWithCode(c, apierrors.ErrCodeInvalidCredentials, "A valid token is required to connect")
		return
	}

	if err := h.hub.Accept(c.Writer, c.Request, identity); err != nil {
		if errors.Is(err, realtime.ErrHubClosed) {
			apierrors.ServiceUnavailable(c, "Realtime service is shutting down")
			return
		}
		// the upgrader has written its own response
		c.Error(err)
		c.Abort()
	}
}
