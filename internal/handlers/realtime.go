package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/realtime"
)

// RealtimeHandler upgrades clients onto the occupancy event feed.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// GET /api/realtime/occupancy?class=<id>&class=<id>
// Clients can also subscribe after connecting via control messages.
func (h *RealtimeHandler) Occupancy(c *gin.Context) {
	h.hub.Serve(c.QueryArray("class"), c.Writer, c.Request)
}
